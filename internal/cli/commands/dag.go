package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	NodeCount() int
	EdgeCount() int
}

// DAGNode is one table or topic of the dependency graph.
type DAGNode struct {
	Name      string     `json:"name"`
	Level     core.Level `json:"level"`
	DependsOn []string   `json:"depends_on"`
	UsedBy    []string   `json:"used_by"`
}

// DAGStage groups tables that only depend on earlier stages.
type DAGStage struct {
	Stage  int       `json:"stage"`
	Tables []DAGNode `json:"tables"`
}

// DAGOutput is the JSON form of the dependency graph.
type DAGOutput struct {
	Stages     []DAGStage `json:"stages"`
	TotalNodes int        `json:"total_nodes"`
	TotalEdges int        `json:"total_edges"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dag",
		Short: "Show the table dependency graph",
		Long: `Display the dependency graph of all tables.

Tables are grouped into stages: stage 0 holds the bronze feed topics, and
every later stage only reads tables of earlier stages. The graph is built
without contacting the archive.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  livef1 dag

  # Output as JSON
  livef1 dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	graph, err := cmdCtx.Engine.Graph()
	if err != nil {
		return err
	}

	stages, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get execution stages: %w", err)
	}

	levelOf := func(name string) core.Level {
		if node, ok := graph.GetNode(name); ok {
			if t, ok := node.Data.(*lake.Table); ok && t != nil {
				return t.Level()
			}
		}
		return core.LevelBronze
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, graph, stages, levelOf)
	case output.ModeMarkdown:
		dagMarkdown(r, graph, stages)
	default:
		dagText(r, graph, stages, levelOf)
	}
	return nil
}

// dagText outputs the DAG in styled text format.
func dagText(r *output.Renderer, graph GraphQuerier, stages [][]string, levelOf func(string) core.Level) {
	styles := r.Styles()

	r.Header("Dependency Graph")

	for i, stage := range stages {
		r.Println(styles.Bold.Render(fmt.Sprintf("Stage %d:", i)))
		for _, name := range stage {
			level := string(levelOf(name))
			style, ok := styles.Level[level]
			if !ok {
				style = styles.Muted
			}
			r.Printf("  %s %s\n", style.Render(fmt.Sprintf("%-6s", level)), name)
			if deps := graph.GetParents(name); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(name); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d tables, %d dependencies", graph.NodeCount(), graph.EdgeCount())))
}

// dagMarkdown outputs the DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, stages [][]string) {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, stage := range stages {
		name := fmt.Sprintf("Stage %d", i)
		if i == 0 {
			name = "Stage 0 (Feed topics)"
		}
		r.Println(output.FormatHeader(2, name))

		for _, table := range stage {
			r.Printf("- %s\n", table)
			if deps := graph.GetParents(table); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(table); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Tables", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))
}

// dagJSON outputs the DAG in JSON format.
func dagJSON(r *output.Renderer, graph GraphQuerier, stages [][]string, levelOf func(string) core.Level) error {
	out := DAGOutput{
		Stages:     make([]DAGStage, 0, len(stages)),
		TotalNodes: graph.NodeCount(),
		TotalEdges: graph.EdgeCount(),
	}
	for i, stage := range stages {
		s := DAGStage{Stage: i, Tables: make([]DAGNode, 0, len(stage))}
		for _, name := range stage {
			s.Tables = append(s.Tables, DAGNode{
				Name:      name,
				Level:     levelOf(name),
				DependsOn: graph.GetParents(name),
				UsedBy:    graph.GetChildren(name),
			})
		}
		out.Stages = append(out.Stages, s)
	}
	return r.JSON(out)
}
