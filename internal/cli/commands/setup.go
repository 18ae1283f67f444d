// Package commands implements the livef1 subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/livef1/internal/cli/config"
	"github.com/leapstack-labs/livef1/internal/cli/output"
	"github.com/leapstack-labs/livef1/internal/engine"
	"github.com/leapstack-labs/livef1/internal/feed"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an initialized engine.
// Call the returned cleanup function when done.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, err := NewEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that never touch the archive.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd)
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the config loaded by the root command, or the
// built-in defaults when none was loaded.
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg
	}
	return &config.Config{
		TablesDir:    config.DefaultTablesDir,
		StatePath:    config.DefaultStateFile,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
		Feed:         config.FeedConfig{BaseURL: config.DefaultFeedURL},
	}
}

// NewEngine builds an engine from the CLI configuration.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	engineCfg := engine.Config{
		Season:    cfg.Season,
		Meeting:   cfg.Meeting,
		Session:   cfg.Session,
		TablesDir: cfg.TablesDir,
		StatePath: cfg.StatePath,
		Feed: feed.Config{
			BaseURL:           cfg.Feed.BaseURL,
			Timeout:           cfg.Feed.Timeout,
			RequestsPerSecond: cfg.Feed.RequestsPerSecond,
			Retries:           cfg.Feed.Retries,
			Logger:            logger,
		},
		Logger: logger,
	}
	if cfg.Target != nil && cfg.Target.Type != "" {
		ac := cfg.Target.AdapterConfig()
		engineCfg.AdapterConfig = &ac
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return eng, nil
}

// requireSession fails with a hint when no session is selected.
func requireSession(cfg *config.Config) error {
	return cfg.Validate()
}
