// Package postgres provides a PostgreSQL export adapter.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/livef1/pkg/adapters/postgres"
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// Dialect is the PostgreSQL flavour of SQL used for exports.
var Dialect = &adapter.Dialect{
	Name:          "postgres",
	DefaultSchema: "public",
	Types: map[core.ColumnType]string{
		core.ColumnTypeText:    "TEXT",
		core.ColumnTypeInteger: "BIGINT",
		core.ColumnTypeDouble:  "DOUBLE PRECISION",
		core.ColumnTypeBoolean: "BOOLEAN",
		core.ColumnTypeJSON:    "JSONB",
	},
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Quote:       func(parts ...string) string { return pgx.Identifier(parts).Sanitize() },
}

// Adapter implements core.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return Dialect.Name
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg core.AdapterConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Params["sslmode"].(string); ok && mode != "" {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// ReplaceTable drops and recreates table and loads rows into it. On a pgx
// connection rows are streamed with COPY; other drivers get batched inserts.
func (a *Adapter) ReplaceTable(ctx context.Context, table string, columns []core.Column, rows [][]any) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, ok := a.DB.Driver().(*stdlib.Driver); !ok {
		return a.ReplaceTableCommon(ctx, Dialect, table, columns, rows)
	}
	return a.copyReplace(ctx, table, columns, rows)
}

func (a *Adapter) copyReplace(ctx context.Context, table string, columns []core.Column, rows [][]any) error {
	schema, name := a.ParseQualifiedName(table, Dialect)
	ident := pgx.Identifier{schema, name}
	create, err := Dialect.CreateTableSQL(ident.Sanitize(), columns)
	if err != nil {
		return err
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}

	// Get the underlying pgx connection for COPY support
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		return pgx.BeginFunc(ctx, pgxConn, func(tx pgx.Tx) error {
			for _, stmt := range []string{
				"CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize(),
				"DROP TABLE IF EXISTS " + ident.Sanitize(),
				create,
			} {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute %q: %w", stmt, err)
				}
			}
			n, err := tx.CopyFrom(ctx, ident, names, pgx.CopyFromRows(rows))
			if err != nil {
				return fmt.Errorf("failed to copy data: %w", err)
			}
			a.Logger.Debug("table replaced", "table", ident.Sanitize(), "rows", n)
			return nil
		})
	})
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
