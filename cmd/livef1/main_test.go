package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/livef1/internal/cli"
	"github.com/leapstack-labs/livef1/internal/cli/commands"
	"github.com/leapstack-labs/livef1/internal/testutil"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// setupProject initializes a project against a fake archive and returns
// its directory.
func setupProject(t *testing.T) string {
	t.Helper()
	srv := testutil.ArchiveServer(t, testutil.BahrainRace())
	t.Setenv("LIVEF1_FEED__BASE_URL", srv.URL+"/static")
	t.Setenv("LIVEF1_FEED__RETRIES", "0")

	dir := t.TempDir()
	_, _, err := execute(t, "init", dir, "--project-dir", dir, "--season", "2024", "--meeting", "bahrain", "--session", "race")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables", "penalties.star"), []byte(testutil.PenaltiesScript), 0o600))
	// The example script reads laps, which this archive cannot build.
	require.NoError(t, os.Remove(filepath.Join(dir, "tables", "fastest_laps.star")))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "livef1")
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, expected := range []string{"topics", "tables", "generate", "show", "dag", "export", "runs", "serve", "init"} {
		assert.Contains(t, out, expected)
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "init", dir, "--project-dir", dir, "--season", "2023", "--meeting", "monaco")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "livef1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "season: 2023")
	assert.Contains(t, string(content), "meeting: monaco")
	assert.Contains(t, string(content), "session: race")
	assert.FileExists(t, filepath.Join(dir, "tables", "fastest_laps.star"))
	assert.FileExists(t, filepath.Join(dir, ".gitignore"))

	_, _, err = execute(t, "init", dir, "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "init", dir, "--project-dir", dir, "--force")
	require.NoError(t, err)
}

func TestTopicsCommand(t *testing.T) {
	dir := setupProject(t)

	out, _, err := execute(t, "topics", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var rows []commands.TopicRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "DriverList", rows[0].Topic)
	assert.True(t, rows[0].Parsed)
}

func TestTopicsCommand_NoSession(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "topics", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "season is required")
}

func TestTablesCommand(t *testing.T) {
	dir := setupProject(t)

	out, _, err := execute(t, "tables", "--project-dir", dir, "--level", "gold", "-o", "json")
	require.NoError(t, err)

	var rows []commands.TableRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "penalties", rows[0].Name)
	assert.Equal(t, filepath.Join("tables", "penalties.star"), rows[0].Origin)

	out, _, err = execute(t, "tables", "--project-dir", dir, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| silver | laps |")
}

func TestGenerateAndRunsCommands(t *testing.T) {
	dir := setupProject(t)

	out, _, err := execute(t, "generate", "penalties", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var gen commands.GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &gen))
	assert.Equal(t, core.RunStatusCompleted, gen.Run.Status)
	assert.NotEmpty(t, gen.Tables)

	out, _, err = execute(t, "runs", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)
	var runs []core.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, gen.Run.ID, runs[0].ID)

	out, _, err = execute(t, "runs", gen.Run.ID, "--project-dir", dir, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "penalties")
}

func TestGenerateCommand_Failure(t *testing.T) {
	dir := setupProject(t)

	_, errOut, err := execute(t, "generate", "--silver", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
	assert.Contains(t, errOut, "TimingData")
}

func TestShowCommand(t *testing.T) {
	dir := setupProject(t)

	out, _, err := execute(t, "show", "gold.penalties", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var show commands.ShowOutput
	require.NoError(t, json.Unmarshal([]byte(out), &show))
	assert.Equal(t, "penalties", show.Table)
	assert.Equal(t, core.LevelGold, show.Level)
	require.Len(t, show.Rows, 1)
	assert.Equal(t, "22", show.Rows[0]["DriverNo"])

	out, _, err = execute(t, "show", "RaceControlMessages", "--columns", "Category,Message", "-n", "1", "--project-dir", dir, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| Category | Message |")
	assert.Contains(t, out, "GREEN LIGHT")
	assert.NotContains(t, out, "PENALTY")

	_, _, err = execute(t, "show", "RaceControlMessages", "--columns", "Nope", "--project-dir", dir)
	require.Error(t, err)
}

func TestDAGCommand(t *testing.T) {
	dir := setupProject(t)

	out, _, err := execute(t, "dag", "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var dag commands.DAGOutput
	require.NoError(t, json.Unmarshal([]byte(out), &dag))
	require.NotEmpty(t, dag.Stages)
	stageOf := make(map[string]int)
	for _, stage := range dag.Stages {
		for _, n := range stage.Tables {
			stageOf[n.Name] = stage.Stage
			if n.Name == "penalties" {
				assert.Equal(t, core.LevelGold, n.Level)
				assert.Equal(t, []string{"raceControlMessages"}, n.DependsOn)
			}
		}
	}
	assert.Equal(t, 0, stageOf["RaceControlMessages"])
	assert.Equal(t, 1, stageOf["raceControlMessages"])
	assert.Equal(t, 2, stageOf["penalties"])

	out, _, err = execute(t, "dag", "--project-dir", dir, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## Stage 0 (Feed topics)")
}

func TestExportCommand(t *testing.T) {
	dir := setupProject(t)
	db := filepath.Join(t.TempDir(), "export.duckdb")

	out, _, err := execute(t, "export", "raceControlMessages", "penalties", "--database", db, "--project-dir", dir, "-o", "json")
	require.NoError(t, err)

	var rows []commands.ExportRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []commands.ExportRow{
		{Table: "raceControlMessages", Target: "silver_raceControlMessages", Rows: 2},
		{Table: "penalties", Target: "gold_penalties", Rows: 1},
	}, rows)
	assert.FileExists(t, db)
}
