// Package api provides a read-only HTTP view of a run's event log, run
// metadata, and published site state.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/persistence"
)

// Server serves the run database over HTTP.
type Server struct {
	DB      *persistence.DB
	Addr    string
	Limiter *RateLimiter // Optional; nil disables rate limiting

	srv *http.Server
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	if s.Limiter != nil {
		r.Use(s.Limiter.Middleware)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/events/{agent}", s.handleEvents).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/meta", s.handleMeta).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/sites/{index:[0-9]+}", s.handleSite).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "rate_limited", s.Limiter != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins; localhost dev
// servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
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

type eventView struct {
	ID    int64  `json:"id"`
	RunID string `json:"run_id"`
	*epidemic.Outcome
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		current, err := s.DB.CurrentRun()
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			slog.Error("query current run", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		runID = current
	}

	agentName := mux.Vars(r)["agent"]
	rows, err := s.DB.Events(runID, agentName, limit)
	if err != nil {
		slog.Error("query events", "run", runID, "agent", agentName, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	views := make([]eventView, 0, len(rows))
	for _, row := range rows {
		o, err := row.Outcome()
		if err != nil {
			slog.Error("decode event", "id", row.ID, "error", err)
			http.Error(w, "corrupt event row", http.StatusInternalServerError)
			return
		}
		views = append(views, eventView{ID: row.ID, RunID: row.RunID, Outcome: o})
	}
	writeJSON(w, views)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.DB.AllMeta()
	if err != nil {
		slog.Error("query meta", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "bad site index", http.StatusBadRequest)
		return
	}
	row, err := s.DB.SiteState(index)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "site not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("query site", "index", index, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	var kills map[string]int
	if err := json.Unmarshal([]byte(row.ConiferKillsJSON), &kills); err != nil {
		http.Error(w, "corrupt site row", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"index":              row.CellIndex,
		"row":                row.Row,
		"col":                row.Col,
		"disturbed":          row.Disturbed,
		"time_of_last_event": row.TimeOfLastEvent,
		"agent_name":         row.AgentName,
		"time_of_next":       row.TimeOfNext,
		"conifer_kills":      kills,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
