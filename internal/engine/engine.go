// Package engine ties a configured session to its data lake, the table
// scripts, the generation history store and the export adapter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/livef1/internal/dag"
	"github.com/leapstack-labs/livef1/internal/feed"
	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/livetiming"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/internal/session"
	lstar "github.com/leapstack-labs/livef1/internal/starlark"
	"github.com/leapstack-labs/livef1/internal/state"
	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// Engine orchestrates lake generation for one session.
// Lake operations are serialized; an Engine may be shared by HTTP handlers.
type Engine struct {
	// Export adapter (lazy initialized)
	db          core.Adapter
	dbConfig    *core.AdapterConfig
	dbConnected bool
	dbMu        sync.Mutex

	// Structured logger
	logger *slog.Logger

	store   core.Store
	client  session.Fetcher
	parsers *registry.ParserRegistry
	tables  *registry.TableRegistry
	loader  *lstar.Loader

	season    int
	meeting   string
	session   string
	tablesDir string

	// opMu serializes everything that touches the lake.
	opMu    sync.Mutex
	sess    *session.Session
	scripts []registry.TableSpec

	recMu    sync.Mutex
	recorder *state.Recorder
}

// Config holds engine configuration.
type Config struct {
	// Season, Meeting and Session select the session.
	Season  int
	Meeting string
	Session string
	// TablesDir holds the .star table scripts (optional)
	TablesDir string
	// StatePath is the path to the SQLite state database
	StatePath string
	// Feed configures the archive client; ignored when Client is set
	Feed feed.Config
	// Client overrides the archive client
	Client session.Fetcher
	// AdapterConfig is the export target (optional)
	AdapterConfig *core.AdapterConfig
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The session is loaded, and the export target
// connected, on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "season", cfg.Season, "meeting", cfg.Meeting, "session", cfg.Session)

	client := cfg.Client
	if client == nil {
		fc := cfg.Feed
		if fc.Logger == nil {
			fc.Logger = logger
		}
		c, err := feed.NewClient(fc)
		if err != nil {
			return nil, fmt.Errorf("failed to create feed client: %w", err)
		}
		client = c
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	if statePath != ":memory:" {
		if dir := filepath.Dir(statePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	tables := registry.NewTableRegistry()

	e := &Engine{
		dbConfig:  cfg.AdapterConfig,
		logger:    logger,
		store:     store,
		client:    client,
		parsers:   livetiming.NewParserRegistry(),
		tables:    tables,
		loader:    lstar.NewLoader(lstar.WithLogger(logger)),
		season:    cfg.Season,
		meeting:   cfg.Meeting,
		session:   cfg.Session,
		tablesDir: cfg.TablesDir,
	}

	if _, err := e.ReloadScripts(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the state store and the export connection.
func (e *Engine) Close() error {
	var errs []error
	e.dbMu.Lock()
	if e.db != nil {
		errs = append(errs, e.db.Close())
		e.db = nil
		e.dbConnected = false
	}
	e.dbMu.Unlock()
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}

// Store returns the generation history store.
func (e *Engine) Store() core.Store { return e.store }

// TablesDir returns the scripts directory.
func (e *Engine) TablesDir() string { return e.tablesDir }

// observe forwards lake events to the recorder of the current run.
func (e *Engine) observe(ev lake.GenerationEvent) {
	e.recMu.Lock()
	rec := e.recorder
	e.recMu.Unlock()
	if rec != nil {
		rec.TableGenerated(ev)
	}
}

func (e *Engine) setRecorder(r *state.Recorder) {
	e.recMu.Lock()
	e.recorder = r
	e.recMu.Unlock()
}

// Session returns the configured session, loading the season index on
// first use.
func (e *Engine) Session(ctx context.Context) (*session.Session, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.sessionLocked(ctx)
}

func (e *Engine) sessionLocked(ctx context.Context) (*session.Session, error) {
	if e.sess != nil {
		return e.sess, nil
	}
	if e.season == 0 || e.meeting == "" || e.session == "" {
		return nil, fmt.Errorf("no session selected: season, meeting and session are required")
	}
	s, err := session.LoadSession(ctx, e.season, e.meeting, e.session, session.Config{
		Client:   e.client,
		Parsers:  e.parsers,
		Tables:   e.tables,
		Logger:   e.logger,
		Observer: lake.ObserverFunc(e.observe),
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("session loaded", "session", s.String(), "key", s.Key())
	e.sess = s
	return s, nil
}

// Topics lists the feed topics published for the session.
func (e *Engine) Topics(ctx context.Context) ([]string, error) {
	s, err := e.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Topics(ctx)
}

// Tables returns every registered silver and gold table spec.
func (e *Engine) Tables() []*registry.TableSpec {
	return e.tables.All()
}

// FeedTopics returns the feed topics the registered tables read directly.
func (e *Engine) FeedTopics() []string {
	return e.tables.ExternalSources()
}

// ResolveTable maps a possibly level-qualified reference to a level and
// name. Unregistered names are bronze topics.
func (e *Engine) ResolveTable(ref string) (core.Level, string) {
	if name, ok := e.tables.Resolve(ref); ok {
		spec, _ := e.tables.Get(name)
		return spec.Level, name
	}
	if lvl, name, ok := splitLevel(ref); ok && lvl == core.LevelBronze {
		return lvl, name
	}
	return core.LevelBronze, ref
}

func splitLevel(ref string) (core.Level, string, bool) {
	prefix, rest, found := strings.Cut(ref, ".")
	if !found || rest == "" {
		return "", "", false
	}
	lvl, err := core.ParseLevel(prefix)
	if err != nil {
		return "", "", false
	}
	return lvl, rest, true
}

// Table returns the frame of a table, generating it and its dependencies
// when needed.
func (e *Engine) Table(ctx context.Context, ref string) (*frame.Frame, core.Level, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	s, err := e.sessionLocked(ctx)
	if err != nil {
		return nil, "", err
	}
	level, name := e.ResolveTable(ref)
	f, err := s.Load(ctx, level, name)
	return f, level, err
}

// Metadata returns the lake namespace of the loaded session. It is empty
// until the session has been loaded.
func (e *Engine) Metadata() map[string]core.TableMetadata {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.sess == nil {
		return map[string]core.TableMetadata{}
	}
	l, err := e.sess.Lake()
	if err != nil {
		return map[string]core.TableMetadata{}
	}
	return l.Metadata()
}

// Graph returns the table dependency graph. It needs no session: the
// registered tables are installed into a detached lake.
func (e *Engine) Graph() (*dag.Graph, error) {
	l := lake.New(nil)
	if err := e.tables.Install(l); err != nil {
		return nil, err
	}
	if err := l.DependencyCycle(); err != nil {
		return l.Graph(), err
	}
	return l.Graph(), nil
}

// ensureDBConnected lazily connects the export adapter.
func (e *Engine) ensureDBConnected(ctx context.Context) (core.Adapter, error) {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return e.db, nil
	}
	if e.dbConfig == nil {
		return nil, fmt.Errorf("no export target configured")
	}

	e.logger.Debug("connecting to export target", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(*e.dbConfig, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create export adapter: %w", err)
	}
	if err := db.Connect(ctx, *e.dbConfig); err != nil {
		return nil, fmt.Errorf("failed to connect to export target: %w", err)
	}

	e.db = db
	e.dbConnected = true
	return db, nil
}
