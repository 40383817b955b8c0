package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/domain"
	apimw "github.com/hamed0406/ingestwatch/internal/httpapi/middleware"
	"github.com/hamed0406/ingestwatch/internal/scheduler"
)

// StateReader exposes a read-only view of the engine state.
type StateReader interface {
	Snapshot() domain.Snapshot
}

// TaskRunner runs named tasks under their no-overlap guard.
type TaskRunner interface {
	Trigger(ctx context.Context, name string) error
	Names() []string
}

type Server struct {
	Logger *zap.Logger
	State  StateReader
	Tasks  TaskRunner
	// ResetTask is the task run by POST /api/reset.
	ResetTask string
}

func NewServer(l *zap.Logger, state StateReader, tasks TaskRunner, resetTask string) *Server {
	return &Server{Logger: l, State: state, Tasks: tasks, ResetTask: resetTask}
}

// Router wires the admin API. origins restricts CORS; empty allows all.
// Rate limits are requests per minute per client IP; 0 disables.
func (s *Server) Router(keys apimw.Keys, origins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst), apimw.RequireAny(keys))
		r.Get("/api/state", s.handleState)
		r.Get("/api/checks", s.handleListChecks)
	})
	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst), apimw.RequireAdmin(keys))
		r.Post("/api/reset", s.handleReset)
		r.Post("/api/checks/{name}/run", s.handleRun)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State.Snapshot())
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"checks": s.Tasks.Names()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.run(w, r, s.ResetTask) {
		return
	}
	writeJSON(w, http.StatusOK, s.State.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()
	if !s.run(w, r, name) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"check":       name,
		"status":      "done",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// run triggers a task and writes the error response if it did not complete.
func (s *Server) run(w http.ResponseWriter, r *http.Request, name string) bool {
	err := s.Tasks.Trigger(r.Context(), name)
	switch {
	case err == nil:
		s.Logger.Info("api_task_triggered", zap.String("task", name), zap.String("remote", r.RemoteAddr))
		return true
	case errors.Is(err, scheduler.ErrUnknownTask):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, scheduler.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.Logger.Error("api_task_error", zap.String("task", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "task failed"})
	}
	return false
}
