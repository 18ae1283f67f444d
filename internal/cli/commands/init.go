package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/livef1/internal/cli/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectFile is the livef1.yaml written by init.
type projectFile struct {
	Season    int           `yaml:"season"`
	Meeting   string        `yaml:"meeting"`
	Session   string        `yaml:"session"`
	TablesDir string        `yaml:"tables_dir"`
	StatePath string        `yaml:"state_path"`
	Target    projectTarget `yaml:"target"`
	Server    projectServer `yaml:"server"`
}

type projectTarget struct {
	Type     string `yaml:"type"`
	Database string `yaml:"database"`
}

type projectServer struct {
	Port  int  `yaml:"port"`
	Watch bool `yaml:"watch"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new livef1 project",
		Long: `Initialize a new livef1 project.

This creates:
  - livef1.yaml selecting the session and export target
  - tables/ with an example gold table script
  - .gitignore excluding the .livef1/ state directory`,
		Example: `  # Initialize in the current directory
  livef1 init

  # Initialize a project for the 2024 Monaco qualifying
  livef1 init monaco --season 2024 --meeting monaco --session qualifying

  # Overwrite an existing configuration
  livef1 init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			pf := newProjectFile(getConfig(cmd))
			return runInit(cmd, dir, pf, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

// newProjectFile fills the session from --season, --meeting and --session,
// defaulting to this year's Bahrain race.
func newProjectFile(cfg *config.Config) projectFile {
	pf := projectFile{
		Season:    cfg.Season,
		Meeting:   cfg.Meeting,
		Session:   cfg.Session,
		TablesDir: config.DefaultTablesDir,
		StatePath: config.DefaultStateFile,
		Target:    projectTarget{Type: "duckdb", Database: config.DefaultDatabase},
		Server:    projectServer{Port: config.DefaultPort, Watch: true},
	}
	if pf.Season == 0 {
		pf.Season = time.Now().Year()
	}
	if pf.Meeting == "" {
		pf.Meeting = "bahrain"
	}
	if pf.Session == "" {
		pf.Session = "race"
	}
	return pf
}

func runInit(cmd *cobra.Command, dir string, pf projectFile, force bool) error {
	r := NewCommandContextWithoutEngine(cmd).Renderer

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.FileName)
	}

	content, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}
	r.StatusLine(config.FileName, "", "ok", "")

	files, err := copyTemplate("project", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range files {
		r.StatusLine(f, "", "ok", "")
	}

	r.Println("")
	r.Success("livef1 project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  livef1 topics     List the session's feed topics")
	r.Println("  livef1 generate   Build the silver and gold tables")
	r.Println("  livef1 show laps  Preview a table")
	r.Println("  livef1 export     Write the tables to DuckDB")

	return nil
}
