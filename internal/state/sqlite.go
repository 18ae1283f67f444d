// Package state records generation history in SQLite: one run per
// generation pass over a session's lake, one table run per generated table.
// Lake contents themselves are not persisted.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/livef1/pkg/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ core.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state store", "path", path)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the schema up to date.
func (s *SQLiteStore) InitSchema() error {
	return s.Migrate()
}

// DB exposes the underlying connection for read-only inspection.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func generateID() string {
	return uuid.New().String()
}

func ctx() context.Context {
	return context.Background()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Run operations ---

// CreateRun starts a run for a session.
func (s *SQLiteStore) CreateRun(sessionKey int, sessionName string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:          generateID(),
		SessionKey:  sessionKey,
		SessionName: sessionName,
		Status:      core.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.Int("session", sessionKey))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO runs (id, session_key, session_name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SessionKey, run.SessionName, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

const runColumns = `id, session_key, session_name, status, started_at, completed_at, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*core.Run, error) {
	var (
		run         core.Run
		status      string
		startedAt   string
		completedAt sql.NullString
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.SessionKey, &run.SessionName, &status, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	run.Error = errMsg.String
	return &run, nil
}

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx(),
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRuns returns up to limit runs, newest first.
func (s *SQLiteStore) GetLatestRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Table run operations ---

// RecordTableRun stores the outcome of one table generation. An empty ID
// is filled in.
func (s *SQLiteStore) RecordTableRun(tr *core.TableRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if tr.ID == "" {
		tr.ID = generateID()
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO table_runs (id, run_id, table_name, level, status, row_count, started_at, completed_at, error, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.RunID, tr.TableName, string(tr.Level), string(tr.Status), tr.RowCount,
		formatTime(tr.StartedAt), formatTimePtr(tr.CompletedAt), nullString(tr.Error), tr.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record table run %q: %w", tr.TableName, err)
	}
	return nil
}

// GetTableRuns returns the table runs of a run in the order they started.
func (s *SQLiteStore) GetTableRuns(runID string) ([]*core.TableRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT id, run_id, table_name, level, status, row_count, started_at, completed_at, error, execution_ms
		 FROM table_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.TableRun
	for rows.Next() {
		var (
			tr          core.TableRun
			level       string
			status      string
			startedAt   string
			completedAt sql.NullString
			errMsg      sql.NullString
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.TableName, &level, &status, &tr.RowCount,
			&startedAt, &completedAt, &errMsg, &tr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan table run: %w", err)
		}
		tr.Level = core.Level(level)
		tr.Status = core.TableRunStatus(status)
		if tr.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if tr.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}
		tr.Error = errMsg.String
		out = append(out, &tr)
	}
	return out, rows.Err()
}
