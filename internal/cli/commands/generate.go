package commands

import (
	"fmt"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/engine"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/spf13/cobra"
)

// GenerateOutput is the JSON result of a generation run.
type GenerateOutput struct {
	Run    *core.Run        `json:"run"`
	Tables []*core.TableRun `json:"tables"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var silver, gold bool

	cmd := &cobra.Command{
		Use:   "generate [table...]",
		Short: "Generate silver and gold tables",
		Long: `Generate tables of the selected session, loading every bronze topic and
table they depend on first.

Without arguments every silver and gold table is generated; --silver or
--gold restricts the levels. Each generation is recorded in the state
database and shown by 'livef1 runs'.`,
		Example: `  # Generate everything
  livef1 generate

  # Only silver tables
  livef1 generate --silver

  # Specific tables and their dependencies
  livef1 generate laps gold.penalties`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.GenerateOptions{Tables: args, Silver: silver, Gold: gold}
			if len(args) == 0 && !silver && !gold {
				opts.Silver, opts.Gold = true, true
			}
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&silver, "silver", false, "Generate silver tables")
	cmd.Flags().BoolVar(&gold, "gold", false, "Generate gold tables")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts engine.GenerateOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireSession(cmdCtx.Cfg); err != nil {
		return err
	}

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	run, genErr := eng.Generate(cmd.Context(), opts)
	if run == nil {
		return genErr
	}
	tableRuns, err := eng.TableRuns(run.ID)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(GenerateOutput{Run: run, Tables: tableRuns}); err != nil {
			return err
		}
		return genErr
	}

	r.Header(fmt.Sprintf("%s (run %s)", run.SessionName, run.ID))
	for _, tr := range tableRuns {
		status, detail := "ok", fmt.Sprintf("%d rows, %dms", tr.RowCount, tr.ExecutionMS)
		if tr.Status == core.TableRunStatusFailed {
			status, detail = "failed", tr.Error
		}
		r.StatusLine(tr.TableName, string(tr.Level), status, detail)
	}

	if genErr != nil {
		return fmt.Errorf("generation failed: %w", genErr)
	}
	r.Success(fmt.Sprintf("Generated %d tables", len(tableRuns)))
	return nil
}
