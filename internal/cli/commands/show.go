package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
	"github.com/spf13/cobra"
)

// ShowOutput is the JSON form of a table preview.
type ShowOutput struct {
	Table   string           `json:"table"`
	Level   core.Level       `json:"level"`
	Columns []core.Column    `json:"columns"`
	Total   int              `json:"total"`
	Rows    []map[string]any `json:"rows"`
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	var limit int
	var columns []string

	cmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Show the rows of a table",
		Long: `Load a table, generating it and its dependencies when needed, and print
its first rows.

Names may be level-qualified (silver.laps); names that are not registered
tables are bronze feed topics.`,
		Example: `  # First rows of the laps table
  livef1 show laps

  # A bronze topic, selected columns
  livef1 show RaceControlMessages --columns Utc,Message

  # Every row as JSON
  livef1 show gold.penalties --limit 0 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], limit, columns)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to print (0 for all)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to print (default all)")

	return cmd
}

func runShow(cmd *cobra.Command, ref string, limit int, columns []string) error {
	if limit < 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireSession(cmdCtx.Cfg); err != nil {
		return err
	}

	f, level, err := cmdCtx.Engine.Table(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		for _, c := range columns {
			if !f.HasColumn(c) {
				return fmt.Errorf("table %s has no column %q", ref, c)
			}
		}
		f = f.Select(columns...)
	}
	_, name := cmdCtx.Engine.ResolveTable(ref)

	n := f.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return showJSON(r, name, level, f, n)
	}

	header := f.Columns()
	rows := make([][]string, n)
	for i := range n {
		rec := f.Row(i)
		row := make([]string, len(header))
		for j, c := range header {
			row[j] = formatCell(rec[c])
		}
		rows[i] = row
	}

	r.Header(fmt.Sprintf("%s.%s", level, name))
	r.Table(header, rows)
	if n < f.Len() {
		r.Muted(fmt.Sprintf("%d of %d rows", n, f.Len()))
	}
	return nil
}

func showJSON(r *output.Renderer, name string, level core.Level, f *frame.Frame, n int) error {
	cols := adapter.InferColumns(f)
	rows := make([]map[string]any, n)
	for i := range n {
		rec := f.Row(i)
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c.Name] = adapter.ToValue(c.Type, rec[c.Name])
		}
		rows[i] = row
	}
	return r.JSON(ShowOutput{Table: name, Level: level, Columns: cols, Total: f.Len(), Rows: rows})
}

func formatCell(v any) string {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return frame.String(v)
}
