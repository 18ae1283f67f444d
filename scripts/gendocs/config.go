package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/livef1/internal/cli/config"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Description string
	Category    string // "project", "feed", "server", "target"
}

// getConfigSchema mirrors the koanf keys of config.Config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "season", Type: "int", Description: "Season year", Category: "project"},
		{Name: "meeting", Type: "string", Description: "Meeting name, location or key", Category: "project"},
		{Name: "session", Type: "string", Description: "Session name or type", Category: "project"},
		{Name: "tables_dir", Type: "string", Description: "Directory of table scripts", Category: "project"},
		{Name: "state_path", Type: "string", Description: "SQLite state database recording runs", Category: "project"},
		{Name: "environment", Type: "string", Description: "Entry of environments applied by default", Category: "project"},
		{Name: "output", Type: "string", Description: "Output format: auto, text, markdown, json", Category: "project"},
		{Name: "verbose", Type: "bool", Description: "Debug logging", Category: "project"},

		{Name: "feed.base_url", Type: "string", Description: "Live-timing archive URL", Category: "feed"},
		{Name: "feed.timeout", Type: "duration", Description: "Per-request timeout", Category: "feed"},
		{Name: "feed.requests_per_second", Type: "float", Description: "Client-side rate limit", Category: "feed"},
		{Name: "feed.retries", Type: "int", Description: "Retries for failed requests", Category: "feed"},

		{Name: "server.port", Type: "int", Description: "Port of `livef1 serve`", Category: "server"},
		{Name: "server.watch", Type: "bool", Description: "Reload table scripts on change", Category: "server"},
		{Name: "server.preview_limit", Type: "int", Description: "Rows returned by table previews", Category: "server"},

		{Name: "target.type", Type: "string", Description: "Export adapter: duckdb, postgres", Category: "target"},
		{Name: "target.database", Type: "string", Description: "File path (DuckDB) or database name", Category: "target"},
		{Name: "target.host", Type: "string", Description: "Database host", Category: "target"},
		{Name: "target.port", Type: "int", Description: "Database port", Category: "target"},
		{Name: "target.user", Type: "string", Description: "Database username", Category: "target"},
		{Name: "target.password", Type: "string", Description: "Database password", Category: "target"},
		{Name: "target.schema", Type: "string", Description: "Schema receiving exported tables", Category: "target"},
		{Name: "target.params", Type: "map[string]any", Description: "Adapter-specific settings", Category: "target"},
	}
}

// generateConfigDocs writes configuration.md.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "livef1 configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("livef1 is configured via %s in your project root. Values are layered: defaults, then the file, then %s environment variables, then command-line flags.",
		InlineCode(config.FileName), InlineCode(config.EnvPrefix+"*")))

	defaults := config.Defaults()
	fields := getConfigSchema()

	sections := []struct{ category, title string }{
		{"project", "Project Settings"},
		{"feed", "Feed"},
		{"server", "Server"},
		{"target", "Export Target"},
	}
	for _, sec := range sections {
		w.Header(2, sec.title)
		var rows [][]string
		for _, f := range fields {
			if f.Category != sec.category {
				continue
			}
			def := "-"
			if v, ok := defaults[f.Name]; ok {
				def = InlineCode(fmt.Sprint(v))
			}
			rows = append(rows, []string{InlineCode(f.Name), f.Type, def, f.Description})
		}
		w.Table([]string{"Field", "Type", "Default", "Description"}, rows)
	}

	w.Header(2, "Environments")
	w.Paragraph("Entries of `environments` override the tables directory and merge over the target. `--target` selects one for a single command.")
	w.CodeBlock("yaml", `season: 2024
meeting: bahrain
session: race

target:
  type: duckdb
  database: .livef1/lake.duckdb

environments:
  prod:
    target:
      type: postgres
      host: db.example.com
      user: livef1
      password: ${POSTGRES_PASSWORD}
      database: f1
      schema: live`)

	w.Header(2, "Environment Variables")
	w.Paragraph("Use `${VAR_NAME}` inside the file to read secrets from the environment. Keys can also be set directly:")
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, InlineCode(config.EnvVar(k)))
	}
	w.BulletList(items)

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
