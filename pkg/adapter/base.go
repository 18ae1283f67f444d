package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/livef1/pkg/core"
)

// Dialect describes the SQL differences ReplaceTableCommon cares about.
type Dialect struct {
	Name          string
	DefaultSchema string
	Types         map[core.ColumnType]string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote renders a possibly schema-qualified identifier.
	Quote func(parts ...string) string
}

// QuoteIdent double-quotes each part and joins them with dots.
func QuoteIdent(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ".")
}

// CreateTableSQL renders the CREATE TABLE statement for target, which must
// already be quoted.
func (d *Dialect) CreateTableSQL(target string, columns []core.Column) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", target)
	}
	quote := d.Quote
	if quote == nil {
		quote = QuoteIdent
	}
	defs := make([]string, len(columns))
	for i, col := range columns {
		typ, ok := d.Types[col.Type]
		if !ok {
			return "", fmt.Errorf("column %s: unsupported type %q for %s", col.Name, col.Type, d.Name)
		}
		defs[i] = quote(col.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(defs, ", ")), nil
}

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses the configured schema, then the dialect's default, if not specified.
func (b *BaseSQLAdapter) ParseQualifiedName(table string, d *Dialect) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema, table
	}
	return d.DefaultSchema, table
}

// ReplaceTableCommon drops and recreates table, then inserts rows, all in
// one transaction. Concrete adapters call it with their dialect.
func (b *BaseSQLAdapter) ReplaceTableCommon(ctx context.Context, d *Dialect, table string, columns []core.Column, rows [][]any) (err error) {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	quote := d.Quote
	if quote == nil {
		quote = QuoteIdent
	}
	schema, name := b.ParseQualifiedName(table, d)
	target := quote(schema, name)

	create, err := d.CreateTableSQL(target, columns)
	if err != nil {
		return err
	}
	names := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quote(col.Name)
		params[i] = d.Placeholder(i + 1)
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + quote(schema),
		"DROP TABLE IF EXISTS " + target,
		create,
	}
	for _, s := range stmts {
		if _, err = tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to execute %q: %w", s, err)
		}
	}

	if len(rows) > 0 {
		//nolint:gosec // identifiers are quoted, values are bound
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", target, strings.Join(names, ", "), strings.Join(params, ", "))
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for i, row := range rows {
			if _, err = stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	if b.Logger != nil {
		b.Logger.Debug("table replaced", "table", target, "columns", len(columns), "rows", len(rows))
	}
	return nil
}
