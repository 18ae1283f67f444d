package engine

import (
	"fmt"

	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/internal/silver"
)

// ReloadScripts re-executes the table scripts and swaps their specs into
// the registry. On failure the previous scripts stay registered. The
// session lake is rebuilt on next use, so generated tables are discarded.
func (e *Engine) ReloadScripts() (int, error) {
	specs, err := e.loader.Load(e.tablesDir)
	if err != nil {
		return 0, fmt.Errorf("failed to load table scripts: %w", err)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	previous := e.scripts
	e.unregisterScripts(previous)
	if err := e.registerScripts(specs); err != nil {
		e.unregisterScripts(specs)
		if rerr := e.registerScripts(previous); rerr != nil {
			e.logger.Error("failed to restore table scripts", "error", rerr)
		}
		return 0, err
	}
	e.scripts = specs

	if e.sess != nil {
		e.sess.ResetLake()
	}
	e.logger.Debug("table scripts loaded", "dir", e.tablesDir, "tables", len(specs))
	return len(specs), nil
}

// registerScripts re-registers the builtin tables first, so a removed
// script that shadowed a builtin restores it.
func (e *Engine) registerScripts(specs []registry.TableSpec) error {
	if err := silver.Register(e.tables); err != nil {
		return err
	}
	for _, spec := range specs {
		if err := e.tables.Register(spec); err != nil {
			return fmt.Errorf("%s: %w", spec.Origin, err)
		}
	}
	return nil
}

func (e *Engine) unregisterScripts(specs []registry.TableSpec) {
	seen := make(map[string]bool)
	for _, spec := range specs {
		if !seen[spec.Origin] {
			seen[spec.Origin] = true
			e.tables.Unregister(spec.Origin)
		}
	}
}
