// Package config provides configuration management for the livef1 CLI.
//
// Values are layered with koanf: built-in defaults, then livef1.yaml, then
// LIVEF1_* environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/livef1/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	// Season, Meeting and Session select the session to work on.
	Season  int    `koanf:"season"`
	Meeting string `koanf:"meeting"`
	Session string `koanf:"session"`

	TablesDir    string                `koanf:"tables_dir"`
	StatePath    string                `koanf:"state_path"`
	Environment  string                `koanf:"environment"`
	Verbose      bool                  `koanf:"verbose"`
	OutputFormat string                `koanf:"output"`
	Feed         FeedConfig            `koanf:"feed"`
	Target       *core.TargetConfig    `koanf:"target"`
	Server       ServerConfig          `koanf:"server"`
	Environments map[string]*EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the config file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// FeedConfig configures the live-timing archive client.
type FeedConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Retries           int           `koanf:"retries"`
}

// ServerConfig configures `livef1 serve`.
type ServerConfig struct {
	Port         int  `koanf:"port"`
	Watch        bool `koanf:"watch"`
	PreviewLimit int  `koanf:"preview_limit"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	TablesDir string             `koanf:"tables_dir"`
	Target    *core.TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	FileName         = "livef1.yaml"
	FileNameAlt      = "livef1.yml"
	DefaultTablesDir = "tables"
	DefaultStateFile = ".livef1/state.db"
	DefaultDatabase  = ".livef1/lake.duckdb"
	DefaultEnv       = "dev"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultPort      = 8765
	DefaultPreview   = 50
	DefaultFeedURL   = "https://livetiming.formula1.com/static/"
)

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"tables_dir":               DefaultTablesDir,
		"state_path":               DefaultStateFile,
		"environment":              DefaultEnv,
		"verbose":                  false,
		"output":                   DefaultOutput,
		"feed.base_url":            DefaultFeedURL,
		"feed.timeout":             "30s",
		"feed.requests_per_second": 4.0,
		"feed.retries":             3,
		"server.port":              DefaultPort,
		"server.watch":             true,
		"server.preview_limit":     DefaultPreview,
	}
}
