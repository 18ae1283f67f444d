package commands

import (
	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/livetiming"
	"github.com/spf13/cobra"
)

// TopicRow is one published feed topic.
type TopicRow struct {
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
	Parsed      bool   `json:"parsed"`
}

// NewTopicsCommand creates the topics command.
func NewTopicsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the feed topics of the session",
		Long: `List the live-timing topics published for the selected session.

Topics with a parser can be loaded as bronze tables.`,
		Example: `  # Topics of the 2024 Bahrain race
  livef1 topics --season 2024 --meeting bahrain --session race

  # As JSON
  livef1 topics -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTopics(cmd)
		},
	}
}

func runTopics(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireSession(cmdCtx.Cfg); err != nil {
		return err
	}

	topics, err := cmdCtx.Engine.Topics(cmd.Context())
	if err != nil {
		return err
	}

	parsers := livetiming.NewParserRegistry()
	rows := make([]TopicRow, 0, len(topics))
	for _, t := range topics {
		row := TopicRow{Topic: t, Parsed: parsers.Has(t)}
		if info, ok := livetiming.LookupTopic(t); ok {
			row.Description = info.Description
		}
		rows = append(rows, row)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rows)
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		parsed := "no"
		if row.Parsed {
			parsed = "yes"
		}
		table = append(table, []string{row.Topic, parsed, row.Description})
	}
	r.Table([]string{"Topic", "Parsed", "Description"}, table)
	return nil
}
