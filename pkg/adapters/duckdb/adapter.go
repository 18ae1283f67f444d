// Package duckdb provides a DuckDB export adapter.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/livef1/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Dialect is the DuckDB flavour of SQL used for exports.
var Dialect = &adapter.Dialect{
	Name:          "duckdb",
	DefaultSchema: "main",
	Types: map[core.ColumnType]string{
		core.ColumnTypeText:    "VARCHAR",
		core.ColumnTypeInteger: "BIGINT",
		core.ColumnTypeDouble:  "DOUBLE",
		core.ColumnTypeBoolean: "BOOLEAN",
		core.ColumnTypeJSON:    "VARCHAR",
	},
	Placeholder: func(int) string { return "?" },
	Quote:       adapter.QuoteIdent,
}

// Adapter implements core.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return Dialect.Name
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	for _, stmt := range params.setupSQL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("duckdb setup %q: %w", stmt, err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	a.Logger.Debug("connected to duckdb", "path", path)

	return nil
}

// ReplaceTable drops and recreates table and loads rows into it.
func (a *Adapter) ReplaceTable(ctx context.Context, table string, columns []core.Column, rows [][]any) error {
	return a.ReplaceTableCommon(ctx, Dialect, table, columns, rows)
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
