package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/livef1/internal/session"
	"github.com/leapstack-labs/livef1/internal/state"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// GenerateOptions selects what a generation run builds. Named tables take
// precedence over the level switches.
type GenerateOptions struct {
	Silver bool
	Gold   bool
	Tables []string
}

// Generate builds the selected tables and records the run in the state
// store. The returned run reflects its final status; a failing table fails
// the run but does not stop the remaining tables.
func (e *Engine) Generate(ctx context.Context, opts GenerateOptions) (*core.Run, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	sess, err := e.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(sess.Key(), sess.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	rec := state.NewRecorder(e.store, run.ID, e.logger)
	e.setRecorder(rec)
	defer e.setRecorder(nil)

	e.logger.Info("starting generation", "run_id", run.ID, "session", sess.String())

	genErr := e.generate(ctx, sess, opts)
	if err := rec.Finish(genErr); err != nil {
		e.logger.Warn("failed to complete run", "run_id", run.ID, "error", err)
	}

	final, err := e.store.GetRun(run.ID)
	if err != nil {
		final = run
	}
	if genErr != nil {
		e.logger.Error("generation failed", "run_id", run.ID, "error", genErr)
		return final, genErr
	}
	e.logger.Info("generation completed", "run_id", run.ID)
	return final, nil
}

func (e *Engine) generate(ctx context.Context, sess *session.Session, opts GenerateOptions) error {
	if len(opts.Tables) == 0 {
		return sess.Generate(ctx, session.GenerateOptions{Silver: opts.Silver, Gold: opts.Gold})
	}
	l, err := sess.Lake()
	if err != nil {
		return err
	}
	var errs []error
	for _, ref := range opts.Tables {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		name, ok := e.tables.Resolve(ref)
		if !ok {
			errs = append(errs, &core.TableNotFoundError{Name: ref})
			continue
		}
		if _, err := l.GenerateTable(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Runs returns the most recent generation runs, newest first.
func (e *Engine) Runs(limit int) ([]*core.Run, error) {
	return e.store.GetLatestRuns(limit)
}

// TableRuns returns the table generations recorded for a run.
func (e *Engine) TableRuns(runID string) ([]*core.TableRun, error) {
	return e.store.GetTableRuns(runID)
}
