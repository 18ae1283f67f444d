package state

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// Recorder is a lake.Observer that stores every table generation as a
// table run of one run.
type Recorder struct {
	store  core.Store
	runID  string
	logger *slog.Logger
}

var _ lake.Observer = (*Recorder)(nil)

// NewRecorder records generation events under runID.
func NewRecorder(store core.Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: store, runID: runID, logger: logger}
}

// TableGenerated implements lake.Observer. Store failures are logged; they
// never fail the generation itself.
func (r *Recorder) TableGenerated(ev lake.GenerationEvent) {
	completed := ev.Started.Add(ev.Duration)
	tr := &core.TableRun{
		RunID:       r.runID,
		TableName:   ev.Table,
		Level:       ev.Level,
		Status:      core.TableRunStatusSuccess,
		RowCount:    int64(ev.Rows),
		StartedAt:   ev.Started,
		CompletedAt: &completed,
		ExecutionMS: ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		tr.Status = core.TableRunStatusFailed
		tr.Error = ev.Err.Error()
	}
	if err := r.store.RecordTableRun(tr); err != nil {
		r.logger.Warn("failed to record table run", "table", ev.Table, "run", r.runID, "error", err)
	}
}

// Finish completes the run: cancelled or failed with the message of err,
// or completed.
func (r *Recorder) Finish(err error) error {
	if errors.Is(err, context.Canceled) {
		return r.store.CompleteRun(r.runID, core.RunStatusCancelled, err.Error())
	}
	if err != nil {
		return r.store.CompleteRun(r.runID, core.RunStatusFailed, err.Error())
	}
	return r.store.CompleteRun(r.runID, core.RunStatusCompleted, "")
}

// RunID returns the run the recorder writes to.
func (r *Recorder) RunID() string { return r.runID }
