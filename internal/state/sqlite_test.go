package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/testutil"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"), "failed to open store")
	require.NoError(t, store.InitSchema(), "failed to init schema")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"), "failed to open in-memory store")
	require.NoError(t, store.Close(), "failed to close store")
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "table_runs"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s does not exist", table)
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// migrating twice is a no-op
	require.NoError(t, store.InitSchema())
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())
	run, err := store.CreateRun(9472, "Race")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()
	require.NoError(t, reopened.InitSchema())
	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Race", got.SessionName)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.CreateRun(1, "x")
	assert.Error(t, err)
	_, err = store.GetLatestRuns(1)
	assert.Error(t, err)
	assert.Error(t, store.RecordTableRun(&core.TableRun{}))
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		status  core.RunStatus
		errMsg  string
		wantErr string
	}{
		{name: "completed", status: core.RunStatusCompleted},
		{name: "failed", status: core.RunStatusFailed, errMsg: "boom", wantErr: "boom"},
		{name: "cancelled", status: core.RunStatusCancelled, errMsg: "context canceled", wantErr: "context canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun(9472, "Bahrain Grand Prix Race")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, core.RunStatusRunning, run.Status)
			assert.Nil(t, run.CompletedAt)

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, 9472, got.SessionKey)
			assert.Equal(t, "Bahrain Grand Prix Race", got.SessionName)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.wantErr, got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Microsecond)
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun("missing", core.RunStatusCompleted, ""), "run not found")
}

func TestSQLiteStore_GetLatestRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for i := range 3 {
		run, err := store.CreateRun(9000+i, "")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.GetLatestRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = store.GetLatestRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSQLiteStore_TableRuns(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun(9472, "Race")
	require.NoError(t, err)

	start := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
	done := start.Add(250 * time.Millisecond)
	require.NoError(t, store.RecordTableRun(&core.TableRun{
		RunID: run.ID, TableName: "TimingData", Level: core.LevelBronze,
		Status: core.TableRunStatusSuccess, RowCount: 1200, StartedAt: start, CompletedAt: &done, ExecutionMS: 250,
	}))
	failed := &core.TableRun{
		RunID: run.ID, TableName: "laps", Level: core.LevelSilver,
		Status: core.TableRunStatusFailed, StartedAt: start.Add(time.Second), Error: "boom",
	}
	require.NoError(t, store.RecordTableRun(failed))
	assert.NotEmpty(t, failed.ID, "ID is filled in")

	trs, err := store.GetTableRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)

	assert.Equal(t, "TimingData", trs[0].TableName)
	assert.Equal(t, core.LevelBronze, trs[0].Level)
	assert.Equal(t, int64(1200), trs[0].RowCount)
	assert.Equal(t, int64(250), trs[0].ExecutionMS)
	assert.True(t, start.Equal(trs[0].StartedAt))
	require.NotNil(t, trs[0].CompletedAt)
	assert.True(t, done.Equal(*trs[0].CompletedAt))

	assert.Equal(t, core.TableRunStatusFailed, trs[1].Status)
	assert.Equal(t, "boom", trs[1].Error)
	assert.Nil(t, trs[1].CompletedAt)

	err = store.RecordTableRun(&core.TableRun{RunID: "missing", TableName: "x", StartedAt: start})
	assert.Error(t, err, "foreign key on run_id")
}

func TestRecorder(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun(9472, "Race")
	require.NoError(t, err)

	rec := NewRecorder(store, run.ID, testutil.NewTestLogger(t))
	start := time.Now().UTC()
	rec.TableGenerated(lake.GenerationEvent{Table: "TimingData", Level: core.LevelBronze, Started: start, Duration: 40 * time.Millisecond, Rows: 10})
	rec.TableGenerated(lake.GenerationEvent{Table: "laps", Level: core.LevelSilver, Started: start, Err: errors.New("boom")})
	require.NoError(t, rec.Finish(errors.New("laps failed")))

	trs, err := store.GetTableRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, core.TableRunStatusSuccess, trs[0].Status)
	assert.Equal(t, int64(10), trs[0].RowCount)
	assert.Equal(t, int64(40), trs[0].ExecutionMS)
	assert.Equal(t, core.TableRunStatusFailed, trs[1].Status)
	assert.Equal(t, "boom", trs[1].Error)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, got.Status)
	assert.Equal(t, "laps failed", got.Error)
}

func TestRecorder_Cancelled(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun(1, "")
	require.NoError(t, err)

	require.NoError(t, NewRecorder(store, run.ID, nil).Finish(context.Canceled))
	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCancelled, got.Status)
}
