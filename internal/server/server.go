// Package server exposes a session's data lake over a read-only JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/livef1/internal/engine"
	"golang.org/x/sync/errgroup"
)

// DefaultPreviewLimit caps the rows returned by the table endpoint when no
// limit is given.
const DefaultPreviewLimit = 50

// Server is the API server.
type Server struct {
	engine       *engine.Engine
	port         int
	watch        bool
	previewLimit int
	logger       *slog.Logger
	notifier     *Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Engine       *engine.Engine
	Port         int
	Watch        bool
	PreviewLimit int
	Logger       *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := cfg.PreviewLimit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	return &Server{
		engine:       cfg.Engine,
		port:         cfg.Port,
		watch:        cfg.Watch,
		previewLimit: limit,
		logger:       logger,
		notifier:     NewNotifier(),
	}
}

// Notifier returns the server's reload notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the router with every API route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.engine.TablesDir() != "" {
		eg.Go(func() error {
			return s.watchScripts(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// reload re-executes the table scripts and tells event subscribers.
func (s *Server) reload(trigger string) {
	s.logger.Debug("script changed, reloading", "file", trigger)

	n, err := s.engine.ReloadScripts()
	ev := Event{Kind: EventReload, File: trigger, Tables: n}
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		ev.Kind = EventReloadFailed
		ev.Error = err.Error()
	}
	s.notifier.Broadcast(ev)
}

// watchScripts watches the tables directory for .star changes.
func (s *Server) watchScripts(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.engine.TablesDir()); err != nil {
		// Continue without watching
		s.logger.Error("failed to watch tables directory", "error", err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".star" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.reload(name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
