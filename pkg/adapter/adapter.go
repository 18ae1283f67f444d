// Package adapter exports lake tables into SQL databases.
//
// Concrete adapters live under pkg/adapters and register themselves with
// Register from an init function. Import them with a blank identifier:
//
//	import _ "github.com/leapstack-labs/livef1/pkg/adapters/duckdb"
package adapter

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// WriteFrame replaces table in the target database with the contents of f.
// Column types are inferred from the frame values.
func WriteFrame(ctx context.Context, a core.Adapter, table string, f *frame.Frame) error {
	if f == nil {
		return fmt.Errorf("export %s: nil frame", table)
	}
	cols := InferColumns(f)
	rows := make([][]any, f.Len())
	for i := range rows {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = ToValue(col.Type, f.Value(i, col.Name))
		}
		rows[i] = row
	}
	if err := a.ReplaceTable(ctx, table, cols, rows); err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}
	return nil
}
