// Package api provides the read-only HTTP API for observing a running
// simulation, plus the Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/persistence"
	"github.com/talgya/orchard-sim/internal/world"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; enables the history endpoints
	RunID    string
	Gatherer prometheus.Gatherer // Optional; enables /metrics
	Port     int
	Origins  []string // Allowed CORS origins

	RatePerSecond float64
	Burst         int
}

// Handler builds the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/bins", s.handleBins)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.handleAgentDetail)
	mux.HandleFunc("GET /api/v1/requests", s.handleRequests)
	mux.HandleFunc("GET /api/v1/repository", s.handleRepository)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/field", s.handleField)

	// History endpoints read the run's stored samples.
	mux.HandleFunc("GET /api/v1/history/repository", s.withDB(s.handleRepoHistory))
	mux.HandleFunc("GET /api/v1/history/bins/{id}", s.withDB(s.handleBinHistory))
	mux.HandleFunc("GET /api/v1/history/agents/{id}", s.withDB(s.handleAgentHistory))

	var handler http.Handler = mux
	if s.RatePerSecond > 0 {
		handler = RateLimitMiddleware(NewRateLimiter(s.RatePerSecond, s.Burst), handler)
	}

	root := http.NewServeMux()
	root.Handle("/api/", corsMiddleware(s.Origins, handler))
	if s.Gatherer != nil {
		root.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return root
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "metrics", s.Gatherer != nil, "history", s.DB != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins. Localhost
// dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withDB(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DB == nil || s.RunID == "" {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":      "orchard",
		"run_id":    s.RunID,
		"mode":      snap.Mode,
		"tick":      snap.Tick,
		"cols":      s.Sim.Field.Grid.Cols,
		"rows":      s.Sim.Field.Grid.Rows,
		"agents":    len(snap.Agents),
		"bins":      len(snap.Bins),
		"requests":  len(snap.Requests),
		"delivered": snap.RepoCount,
		"stats":     snap.Stats,
	}
	if s.Eng != nil {
		status["max_ticks"] = s.Eng.MaxTicks
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.GetStats())
}

func (s *Server) handleBins(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	result := []engine.BinSample{}
	for _, b := range s.Sim.Snapshot().Bins {
		if state != "" && b.State != state {
			continue
		}
		result = append(result, b)
	}
	writeJSON(w, result)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	result := []engine.AgentSample{}
	for _, a := range s.Sim.Snapshot().Agents {
		if state != "" && a.State != state {
			continue
		}
		result = append(result, a)
	}
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	snap := s.Sim.Snapshot()
	for _, a := range snap.Agents {
		if int(a.ID) != id {
			continue
		}
		detail := map[string]any{"agent": a}
		for _, b := range snap.Bins {
			if b.ID == a.CarriedBin {
				detail["carried"] = b
			}
			if b.ID == a.TargetBin {
				detail["target"] = b
			}
		}
		writeJSON(w, detail)
		return
	}
	http.Error(w, "agent not found", http.StatusNotFound)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	reqs := s.Sim.Snapshot().Requests
	if reqs == nil {
		reqs = []world.Coord{}
	}
	writeJSON(w, reqs)
}

func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"count":      snap.RepoCount,
		"yield":      snap.Stats.DeliveredYield,
		"deliveries": snap.Deliveries,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	out := events[start:]
	if out == nil {
		out = []engine.Event{}
	}
	writeJSON(w, out)
}

// handleField returns the remaining yield as rows of cells.
func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	type fieldResponse struct {
		Cols  int         `json:"cols"`
		Rows  int         `json:"rows"`
		Total float64     `json:"total"`
		Yield [][]float64 `json:"yield"`
	}

	f := s.Sim.Field
	resp := fieldResponse{Cols: f.Grid.Cols, Rows: f.Grid.Rows}
	s.Sim.View(func() {
		resp.Total = f.TotalYield()
		resp.Yield = make([][]float64, f.Grid.Rows)
		for y := range resp.Yield {
			row := make([]float64, f.Grid.Cols)
			for x := range row {
				row[x] = f.YieldAt(world.Coord{X: x, Y: y})
			}
			resp.Yield[y] = row
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleRepoHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := s.DB.RepoCounts(s.RunID)
	if err != nil {
		slog.Error("repository history query failed", "error", err)
		writeJSON(w, []persistence.RepoCount{})
		return
	}
	if rows == nil {
		rows = []persistence.RepoCount{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleBinHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid bin id", http.StatusBadRequest)
		return
	}
	rows, err := s.DB.BinHistory(s.RunID, id)
	if err != nil {
		slog.Error("bin history query failed", "bin", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.BinSample{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	rows, err := s.DB.AgentPath(s.RunID, id)
	if err != nil {
		slog.Error("agent history query failed", "agent", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.AgentSample{}
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
