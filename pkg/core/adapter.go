package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all export adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// ReplaceTable drops and recreates table with the given columns and
	// inserts rows in a single transaction.
	ReplaceTable(ctx context.Context, table string, columns []Column, rows [][]any) error

	// DialectName returns the SQL dialect spoken by the adapter.
	DialectName() string
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	// Params holds adapter-specific settings decoded by each adapter.
	Params map[string]any
}

// ColumnType is the portable type of an exported column.
type ColumnType string

// Portable column types.
const (
	ColumnTypeText    ColumnType = "text"
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeDouble  ColumnType = "double"
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeJSON    ColumnType = "json"
)

// Column represents a column in an exported table.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
	Position int        `json:"position"`
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
