package commands

import (
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/spf13/cobra"
)

// TableRow is one registered table.
type TableRow struct {
	Name        string     `json:"name"`
	Level       core.Level `json:"level"`
	Sources     []string   `json:"sources"`
	Origin      string     `json:"origin"`
	Description string     `json:"description,omitempty"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List silver and gold tables",
		Long: `List the built-in silver tables and the tables declared by the
scripts in the tables directory, with their sources.`,
		Example: `  # All tables
  livef1 tables

  # Gold tables only
  livef1 tables --level gold`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd, level)
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Only list tables of this level (silver|gold)")
	_ = cmd.RegisterFlagCompletionFunc("level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"silver", "gold"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTables(cmd *cobra.Command, level string) error {
	var filter core.Level
	if level != "" {
		l, err := core.ParseLevel(level)
		if err != nil {
			return err
		}
		filter = l
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rows := tableRows(cmdCtx.Engine.Tables(), filter, cmdCtx.Cfg.ProjectRoot)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rows)
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{string(row.Level), row.Name, strings.Join(row.Sources, ", "), row.Origin})
	}
	r.Table([]string{"Level", "Table", "Sources", "Origin"}, table)

	if topics := cmdCtx.Engine.FeedTopics(); len(topics) > 0 {
		r.Println("")
		r.Println(output.FormatKeyValue("Feed topics", strings.Join(topics, ", ")))
	}
	return nil
}

// tableRows converts specs to rows; script origins are shown relative to
// the project root.
func tableRows(specs []*registry.TableSpec, filter core.Level, root string) []TableRow {
	rows := make([]TableRow, 0, len(specs))
	for _, spec := range specs {
		if filter != "" && spec.Level != filter {
			continue
		}
		origin := spec.Origin
		if root != "" && filepath.IsAbs(origin) {
			if rel, err := filepath.Rel(root, origin); err == nil {
				origin = rel
			}
		}
		rows = append(rows, TableRow{
			Name:        spec.Name,
			Level:       spec.Level,
			Sources:     spec.Sources,
			Origin:      origin,
			Description: spec.Description,
		})
	}
	return rows
}
