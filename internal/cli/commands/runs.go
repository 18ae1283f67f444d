package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show generation history",
		Long:  `List recent generation runs, or the table generations of one run.`,
		Example: `  # Last 10 runs
  livef1 runs

  # Tables of one run
  livef1 runs 5f0c1d2e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runRunDetail(cmd, args[0])
			}
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.Runs(limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*core.Run{}
		}
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Muted("No runs recorded yet. Run 'livef1 generate' first.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.SessionName,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
		})
	}
	r.Table([]string{"Run", "Session", "Status", "Started", "Duration"}, rows)
	return nil
}

func runRunDetail(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := cmdCtx.Engine.Store().GetRun(id)
	if err != nil {
		return err
	}
	tableRuns, err := cmdCtx.Engine.TableRuns(id)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(GenerateOutput{Run: run, Tables: tableRuns})
	}

	r.Header(fmt.Sprintf("%s (run %s)", run.SessionName, run.ID))
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	r.Println(output.FormatKeyValue("Duration", runDuration(run)))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
	r.Println("")

	rows := make([][]string, 0, len(tableRuns))
	for _, tr := range tableRuns {
		rows = append(rows, []string{
			string(tr.Level),
			tr.TableName,
			string(tr.Status),
			fmt.Sprintf("%d", tr.RowCount),
			fmt.Sprintf("%dms", tr.ExecutionMS),
			tr.Error,
		})
	}
	r.Table([]string{"Level", "Table", "Status", "Rows", "Time", "Error"}, rows)
	return nil
}

func runDuration(run *core.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
