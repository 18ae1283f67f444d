package commands

import (
	"fmt"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/engine"
	"github.com/spf13/cobra"
)

// ExportRow is one exported table.
type ExportRow struct {
	Table  string `json:"table"`
	Target string `json:"target"`
	Rows   int    `json:"rows"`
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [table...]",
		Short: "Write tables to the configured target database",
		Long: `Generate tables and write them to the target database (DuckDB by default,
or PostgreSQL), replacing earlier copies.

Each table is written as <level>_<name>, e.g. silver_laps. Without
arguments every silver and gold table is exported.`,
		Example: `  # Export everything into .livef1/lake.duckdb
  livef1 export

  # Export two tables to the prod environment target
  livef1 export laps gold.penalties --target prod

  # Export a bronze topic into another DuckDB file
  livef1 export DriverList --database ./drivers.duckdb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args)
		},
	}
}

func runExport(cmd *cobra.Command, names []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireSession(cmdCtx.Cfg); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	results, err := cmdCtx.Engine.Export(cmd.Context(), names)

	rows := make([]ExportRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, ExportRow{Table: res.Table, Target: engine.ExportName(res.Level, res.Table), Rows: res.Rows})
	}

	if r.EffectiveMode() == output.ModeJSON {
		if jerr := r.JSON(rows); jerr != nil {
			return jerr
		}
		return err
	}

	for i, row := range rows {
		r.StatusLine(row.Table, string(results[i].Level), "ok", fmt.Sprintf("%d rows -> %s", row.Rows, row.Target))
	}
	if err != nil {
		return err
	}
	target := cmdCtx.Cfg.Target
	dest := target.Database
	if target.Type != "duckdb" {
		dest = fmt.Sprintf("%s@%s", target.Database, target.Host)
	}
	r.Success(fmt.Sprintf("Exported %d tables to %s (%s)", len(rows), dest, target.Type))
	return nil
}
