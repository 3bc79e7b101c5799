// Package api exposes the HTTP surface of the bookkeeping service: the
// webhook trigger, the manual sweep, job status, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/domain"
	"github.com/cacao-collective/bookkeeper/internal/jobs"
)

// Sweeper is the slice of the pipeline the sweep endpoint calls.
type Sweeper interface {
	Sweep(ctx context.Context) (string, error)
}

// Server wires the HTTP routes to the queue and the pipeline.
type Server struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	sweeper   Sweeper
	log       zerolog.Logger
}

// NewServer builds the API server.
func NewServer(publisher jobs.Publisher, store jobs.JobStore, sweeper Sweeper, log zerolog.Logger) *Server {
	return &Server{publisher: publisher, store: store, sweeper: sweeper, log: log}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/events/{kind}", s.handlePostEvent)
		r.Post("/sweep", s.handleSweep)
		r.Get("/jobs/{jobID}", s.handleGetJob)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

type postEventRequest struct {
	Row int `json:"row"`
}

// handlePostEvent accepts the webhook trigger: the kind selector in the path,
// the intake row index in the body. The work runs asynchronously; the
// response carries the job ID for status polling.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	kindParam := chi.URLParam(r, "kind")
	kind, ok := domain.ParseKind(kindParam)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown event kind: "+kindParam)
		return
	}

	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Row < 2 {
		// Row 1 is the header.
		writeError(w, http.StatusBadRequest, "row must be >= 2")
		return
	}

	job := &jobs.PostEventJob{RowIndex: req.Row, Kind: string(kind)}
	if err := s.publisher.PublishPostEvent(r.Context(), job); err != nil {
		s.log.Error().Err(err).Int("row", req.Row).Msg("failed to enqueue post-event job")
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"row":    req.Row,
		"kind":   string(kind),
	})
}

// handleSweep runs a sweep synchronously and returns its summary.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("manual sweep failed")
		writeError(w, http.StatusInternalServerError, "sweep failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found: "+jobID)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// requestLogger logs one line per request with method, path, status and
// duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
