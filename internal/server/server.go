// Package server exposes the admin HTTP API over the job orchestrator.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/job"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/store"
)

// Server holds the API dependencies.
type Server struct {
	orch  *job.Orchestrator
	store store.Store
}

// New creates a Server.
func New(orch *job.Orchestrator, st store.Store) *Server {
	return &Server{orch: orch, store: st}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.createJob)
		r.Get("/jobs/{id}", s.getJob)
		r.Post("/jobs/{id}/process", s.processJob)
		r.Post("/jobs/process-pending", s.processPending)
		r.Get("/contacts/{id}/jobs", s.contactJobs)
		r.Get("/stats", s.stats)
	})

	return r
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" {
		writeError(w, http.StatusBadRequest, "contact_id is required")
		return
	}

	j, err := s.orch.CreateJob(r.Context(), req.ContactID)
	if err != nil {
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "contact not found")
		case job.IsMissingInput(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			internalError(w, err)
		}
		return
	}
	writeData(w, http.StatusCreated, j)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, j)
}

func (s *Server) processJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.orch.ProcessJob(r.Context(), id)
	var ise *job.InvalidStateError
	switch {
	case err == nil:
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.As(err, &ise):
		writeError(w, http.StatusConflict, ise.Error())
		return
	default:
		// Pipeline failure: the job is already marked failed, report it.
		if j, getErr := s.store.GetJob(r.Context(), id); getErr == nil {
			writeData(w, http.StatusOK, j)
			return
		}
		internalError(w, err)
		return
	}

	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, j)
}

func (s *Server) processPending(w http.ResponseWriter, r *http.Request) {
	result, err := s.orch.ProcessPendingJobs(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) contactJobs(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "id")

	if _, err := s.store.GetContact(r.Context(), contactID); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		internalError(w, err)
		return
	}
	jobs, err := s.store.ListJobsByContact(r.Context(), contactID)
	if err != nil {
		internalError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeData(w, http.StatusOK, jobs)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func internalError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
