package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/livef1/internal/feed"
	"github.com/leapstack-labs/livef1/internal/testutil"
	_ "github.com/leapstack-labs/livef1/pkg/adapters/duckdb"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()
	srv := testutil.ArchiveServer(t, testutil.BahrainRace())

	dir := t.TempDir()
	tablesDir := filepath.Join(dir, "tables")
	require.NoError(t, os.MkdirAll(tablesDir, 0o750))
	for name, src := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(tablesDir, name), []byte(src), 0o600))
	}

	e, err := New(Config{
		Season:    testutil.Season,
		Meeting:   testutil.Meeting,
		Session:   testutil.Session,
		TablesDir: tablesDir,
		StatePath: filepath.Join(dir, ".livef1", "state.db"),
		Feed: feed.Config{
			BaseURL:    srv.URL + "/static",
			Retries:    0,
			RetryDelay: time.Millisecond,
		},
		AdapterConfig: &core.AdapterConfig{Type: "duckdb", Path: ":memory:"},
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_RegistersBuiltinsAndScripts(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})

	names := make(map[string]core.Level)
	for _, spec := range e.Tables() {
		names[spec.Name] = spec.Level
	}
	assert.Equal(t, core.LevelSilver, names["laps"])
	assert.Equal(t, core.LevelSilver, names["raceControlMessages"])
	assert.Equal(t, core.LevelGold, names["penalties"])
}

func TestNew_BadScript(t *testing.T) {
	srv := testutil.ArchiveServer(t, testutil.BahrainRace())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.star"), []byte("def ("), 0o600))

	_, err := New(Config{
		TablesDir: dir,
		Feed:      feed.Config{BaseURL: srv.URL + "/static"},
		Logger:    testutil.NewTestLogger(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load table scripts")
}

func TestEngine_Session(t *testing.T) {
	e := newTestEngine(t, nil)

	s, err := e.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.SessionKey, s.Key())

	again, err := e.Session(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestEngine_SessionNotSelected(t *testing.T) {
	e, err := New(Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, err = e.Session(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session selected")
}

func TestEngine_Topics(t *testing.T) {
	e := newTestEngine(t, nil)

	topics, err := e.Topics(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"RaceControlMessages", "DriverList"}, topics)
}

func TestEngine_ResolveTable(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})

	tests := []struct {
		ref       string
		wantLevel core.Level
		wantName  string
	}{
		{"laps", core.LevelSilver, "laps"},
		{"silver.laps", core.LevelSilver, "laps"},
		{"gold.penalties", core.LevelGold, "penalties"},
		{"DriverList", core.LevelBronze, "DriverList"},
		{"bronze.DriverList", core.LevelBronze, "DriverList"},
		{"CarData.z", core.LevelBronze, "CarData.z"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			level, name := e.ResolveTable(tt.ref)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestEngine_Table(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})
	ctx := context.Background()

	f, level, err := e.Table(ctx, "gold.penalties")
	require.NoError(t, err)
	assert.Equal(t, core.LevelGold, level)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "22", f.Value(0, "DriverNo"))
	assert.EqualValues(t, 5, f.Value(0, "Seconds"))

	meta := e.Metadata()
	require.Contains(t, meta, "penalties")
	assert.True(t, meta["penalties"].Generated)
	assert.True(t, meta["raceControlMessages"].Generated)
	assert.Equal(t, core.LevelBronze, meta["RaceControlMessages"].TableType)
}

const messageCountScript = `
def _count(RaceControlMessages):
    return [{"Messages": len(RaceControlMessages)}]

gold_table("messageCount", ["bronze.RaceControlMessages"], _count)
`

func TestEngine_TableFromBronzeQualifiedSource(t *testing.T) {
	e := newTestEngine(t, map[string]string{"count.star": messageCountScript})

	assert.Contains(t, e.FeedTopics(), "RaceControlMessages")

	f, level, err := e.Table(context.Background(), "messageCount")
	require.NoError(t, err)
	assert.Equal(t, core.LevelGold, level)
	require.Equal(t, 1, f.Len())
	assert.EqualValues(t, 2, f.Value(0, "Messages"))
}

func TestEngine_TableBronze(t *testing.T) {
	e := newTestEngine(t, nil)

	f, level, err := e.Table(context.Background(), "RaceControlMessages")
	require.NoError(t, err)
	assert.Equal(t, core.LevelBronze, level)
	assert.Equal(t, 2, f.Len())
}

func TestEngine_GenerateTables(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})

	run, err := e.Generate(context.Background(), GenerateOptions{Tables: []string{"penalties"}})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Equal(t, testutil.SessionKey, run.SessionKey)
	require.NotNil(t, run.CompletedAt)

	trs, err := e.TableRuns(run.ID)
	require.NoError(t, err)
	got := make(map[string]core.TableRunStatus)
	for _, tr := range trs {
		got[tr.TableName] = tr.Status
	}
	assert.Equal(t, core.TableRunStatusSuccess, got["penalties"])
	assert.Equal(t, core.TableRunStatusSuccess, got["raceControlMessages"])

	runs, err := e.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestEngine_GenerateUnknownTable(t *testing.T) {
	e := newTestEngine(t, nil)

	run, err := e.Generate(context.Background(), GenerateOptions{Tables: []string{"nope"}})
	require.ErrorIs(t, err, core.ErrTableNotFound)
	require.NotNil(t, run)
	assert.Equal(t, core.RunStatusFailed, run.Status)
}

func TestEngine_GenerateSilverRecordsFailures(t *testing.T) {
	e := newTestEngine(t, nil)

	// TimingData is not in the archive, so laps cannot load its source
	// while raceControlMessages succeeds.
	run, err := e.Generate(context.Background(), GenerateOptions{Silver: true})
	require.Error(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)

	trs, err := e.TableRuns(run.ID)
	require.NoError(t, err)
	got := make(map[string]core.TableRunStatus)
	for _, tr := range trs {
		got[tr.TableName] = tr.Status
	}
	assert.Equal(t, core.TableRunStatusSuccess, got["raceControlMessages"])
	assert.Equal(t, core.TableRunStatusFailed, got["TimingData"])
	assert.NotContains(t, got, "laps")
}

func TestEngine_GenerateCancelled(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Session(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := e.Generate(ctx, GenerateOptions{Silver: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.RunStatusCancelled, run.Status)
}

func TestEngine_Graph(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})

	g, err := e.Graph()
	require.NoError(t, err)
	assert.Contains(t, g.GetParents("penalties"), "raceControlMessages")
	assert.Contains(t, g.GetParents("raceControlMessages"), "RaceControlMessages")
	assert.Contains(t, g.GetChildren("laps"), "carTelemetry")
}

func TestEngine_GraphCycle(t *testing.T) {
	e := newTestEngine(t, map[string]string{"cycle.star": `
def f(**kw):
    return []

gold_table("a", ["b"], f)
gold_table("b", ["a"], f)
`})

	_, err := e.Graph()
	require.ErrorIs(t, err, core.ErrDependencyCycle)
}

func TestEngine_ReloadScripts(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	_, _, err := e.Table(ctx, "raceControlMessages")
	require.NoError(t, err)
	_, ok := e.tables.Get("penalties")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(e.TablesDir(), "penalties.star"), []byte(testutil.PenaltiesScript), 0o600))
	n, err := e.ReloadScripts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok = e.tables.Get("penalties")
	assert.True(t, ok)

	// The lake is rebuilt, so nothing is generated yet.
	assert.False(t, e.Metadata()["raceControlMessages"].Generated)

	f, _, err := e.Table(ctx, "penalties")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}

func TestEngine_ReloadScriptsKeepsPreviousOnError(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})

	require.NoError(t, os.WriteFile(filepath.Join(e.TablesDir(), "penalties.star"), []byte("def ("), 0o600))
	_, err := e.ReloadScripts()
	require.Error(t, err)

	_, ok := e.tables.Get("penalties")
	assert.True(t, ok)
}

func TestEngine_ReloadScriptsRestoresShadowedBuiltin(t *testing.T) {
	e := newTestEngine(t, map[string]string{"laps.star": `
def laps():
    return [{"LapNo": 1}]

silver_table("laps", [], laps)
`})
	spec, ok := e.tables.Get("laps")
	require.True(t, ok)
	assert.NotEqual(t, "builtin", spec.Origin)

	require.NoError(t, os.Remove(filepath.Join(e.TablesDir(), "laps.star")))
	_, err := e.ReloadScripts()
	require.NoError(t, err)

	spec, ok = e.tables.Get("laps")
	require.True(t, ok)
	assert.Equal(t, "builtin", spec.Origin)
}

func TestEngine_Export(t *testing.T) {
	e := newTestEngine(t, map[string]string{"penalties.star": testutil.PenaltiesScript})
	ctx := context.Background()

	results, err := e.Export(ctx, []string{"raceControlMessages", "gold.penalties"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ExportResult{Table: "raceControlMessages", Level: core.LevelSilver, Rows: 2}, results[0])
	assert.Equal(t, ExportResult{Table: "penalties", Level: core.LevelGold, Rows: 1}, results[1])

	db, err := e.ensureDBConnected(ctx)
	require.NoError(t, err)
	rows, err := db.Query(ctx, "SELECT DriverNo, Seconds FROM gold_penalties")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var driver string
	var seconds int64
	require.NoError(t, rows.Scan(&driver, &seconds))
	assert.Equal(t, "22", driver)
	assert.Equal(t, int64(5), seconds)
	require.NoError(t, rows.Err())
}

func TestEngine_ExportWithoutTarget(t *testing.T) {
	e, err := New(Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, err = e.Export(context.Background(), []string{"laps"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no export target configured")
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "silver_laps", ExportName(core.LevelSilver, "laps"))
	assert.Equal(t, "bronze_CarData.z", ExportName(core.LevelBronze, "CarData.z"))
}
