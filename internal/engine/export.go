package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// ExportResult reports one exported table.
type ExportResult struct {
	Table string
	Level core.Level
	Rows  int
}

// Export writes tables to the configured target, replacing any previous
// copy. Each table lands in "<level>_<name>" of the target's schema. With
// no names, every registered silver and gold table is exported.
func (e *Engine) Export(ctx context.Context, names []string) ([]ExportResult, error) {
	if len(names) == 0 {
		for _, spec := range e.tables.All() {
			names = append(names, spec.Name)
		}
	}

	db, err := e.ensureDBConnected(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ExportResult, 0, len(names))
	for _, ref := range names {
		f, level, err := e.Table(ctx, ref)
		if err != nil {
			return results, err
		}
		_, name := e.ResolveTable(ref)
		target := ExportName(level, name)
		if err := adapter.WriteFrame(ctx, db, target, f); err != nil {
			return results, err
		}
		e.logger.Info("table exported", "table", name, "target", target, "rows", f.Len())
		results = append(results, ExportResult{Table: name, Level: level, Rows: f.Len()})
	}
	return results, nil
}

// ExportName is the target table name of a lake table.
func ExportName(level core.Level, name string) string {
	return fmt.Sprintf("%s_%s", level, name)
}
