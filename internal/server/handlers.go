package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/state"
	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
)

func (s *Server) routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/session", s.sessionInfo)
		r.Get("/events", s.events)
		r.Get("/dag", s.dag)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", s.listTables)
			r.Get("/{name}", s.showTable)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{id}", s.showRun)
		})
	})
}

// TableInfo describes one registered table.
type TableInfo struct {
	Name        string     `json:"name"`
	Level       core.Level `json:"level"`
	Sources     []string   `json:"sources"`
	Description string     `json:"description,omitempty"`
	Origin      string     `json:"origin"`
	Generated   bool       `json:"generated"`
}

// TableData is a table preview.
type TableData struct {
	Name    string           `json:"name"`
	Level   core.Level       `json:"level"`
	Columns []core.Column    `json:"columns"`
	Total   int              `json:"total"`
	Rows    []map[string]any `json:"rows"`
}

// GraphNode is a table or feed topic in the dependency graph.
type GraphNode struct {
	ID    string     `json:"id"`
	Level core.Level `json:"level"`
}

// GraphEdge points from a source to the table reading it.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData is the dependency graph with its execution levels.
type GraphData struct {
	Nodes  []GraphNode `json:"nodes"`
	Edges  []GraphEdge `json:"edges"`
	Stages [][]string  `json:"stages"`
}

// RunDetail is a run with its table runs.
type RunDetail struct {
	Run    *core.Run        `json:"run"`
	Tables []*core.TableRun `json:"tables"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":  sess.Key(),
		"name": sess.Name(),
		"type": sess.Type(),
		"path": sess.Path(),
	})
}

func (s *Server) listTables(w http.ResponseWriter, _ *http.Request) {
	meta := s.engine.Metadata()
	specs := s.engine.Tables()
	out := make([]TableInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, TableInfo{
			Name:        spec.Name,
			Level:       spec.Level,
			Sources:     spec.Sources,
			Description: spec.Description,
			Origin:      spec.Origin,
			Generated:   meta[spec.Name].Generated,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) showTable(w http.ResponseWriter, r *http.Request) {
	limit := s.previewLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}

	name := chi.URLParam(r, "name")
	f, level, err := s.engine.Table(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cols := adapter.InferColumns(f)
	n := f.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	rows := make([]map[string]any, n)
	for i := range n {
		rec := f.Row(i)
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c.Name] = adapter.ToValue(c.Type, rec[c.Name])
		}
		rows[i] = row
	}

	_, resolved := s.engine.ResolveTable(name)
	writeJSON(w, http.StatusOK, TableData{
		Name:    resolved,
		Level:   level,
		Columns: cols,
		Total:   f.Len(),
		Rows:    rows,
	})
}

func (s *Server) dag(w http.ResponseWriter, _ *http.Request) {
	g, err := s.engine.Graph()
	if err != nil {
		s.writeError(w, err)
		return
	}

	data := GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, node := range g.GetAllNodes() {
		level := core.LevelBronze
		if t, ok := node.Data.(*lake.Table); ok && t != nil {
			level = t.Level()
		}
		data.Nodes = append(data.Nodes, GraphNode{ID: node.ID, Level: level})
		for _, child := range g.GetChildren(node.ID) {
			data.Edges = append(data.Edges, GraphEdge{Source: node.ID, Target: child})
		}
	}
	if data.Stages, err = g.GetExecutionLevels(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}
	runs, err := s.engine.Runs(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.engine.Store().GetRun(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	trs, err := s.engine.TableRuns(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if trs == nil {
		trs = []*core.TableRun{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Tables: trs})
}

// events streams reload events as server-sent events until the client
// disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-updates:
			b, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b)
			flusher.Flush()
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrTableNotFound),
		errors.Is(err, core.ErrTopicNotFound),
		errors.Is(err, state.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidLevel):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrDependencyCycle):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
