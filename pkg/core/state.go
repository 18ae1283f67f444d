package core

import "time"

// Store defines the interface for generation history operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(sessionKey int, sessionName string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRuns(limit int) ([]*Run, error)

	// Table run operations
	RecordTableRun(tableRun *TableRun) error
	GetTableRuns(runID string) ([]*TableRun, error)
}

// RunStatus represents the status of a generation run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one generation pass over a session's lake.
type Run struct {
	ID          string     `json:"id"`
	SessionKey  int        `json:"session_key"`
	SessionName string     `json:"session_name"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// TableRunStatus represents the outcome of generating one table.
type TableRunStatus string

// Table run status constants.
const (
	TableRunStatusSuccess TableRunStatus = "success"
	TableRunStatusFailed  TableRunStatus = "failed"
)

// TableRun represents a single table generation within a run.
type TableRun struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	TableName   string         `json:"table_name"`
	Level       Level          `json:"level"`
	Status      TableRunStatus `json:"status"`
	RowCount    int64          `json:"row_count"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	ExecutionMS int64          `json:"execution_ms"`
}
