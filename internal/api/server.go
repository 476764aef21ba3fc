// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/engine"
	"github.com/shelfscout/bookscraper/internal/metrics"
	"github.com/shelfscout/bookscraper/internal/scraper"
)

// Server wires HTTP handlers to the scraper engine.
type Server struct {
	router chi.Router
	engine *engine.Engine
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: eng, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape", s.submitScrape)
		r.Post("/scrape/single", s.scrapeSingle)
		r.Post("/scrape/run", s.runBatch)
		r.Get("/results", s.listResults)
		r.Get("/results/failed", s.listFailedResults)
		r.Delete("/results", s.clearResults)
		r.Get("/tasks/{task_id}", s.getTaskState)
		r.Get("/stats", s.getStats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The engine holds no external dependencies, so ready tracks healthy.
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URLs     []string       `json:"urls"`
	Source   string         `json:"source"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

type scrapeSingleRequest struct {
	URL      string         `json:"url"`
	Source   string         `json:"source"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

type runRequest struct {
	Count int `json:"count"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, s.logger, http.StatusBadRequest, "urls required")
		return
	}

	tasks := make([]scraper.Task, 0, len(req.URLs))
	for _, url := range req.URLs {
		tasks = append(tasks, scraper.Task{
			URL:      url,
			Source:   scraper.ParseSource(req.Source),
			Priority: req.Priority,
			Metadata: req.Metadata,
		})
	}
	ids, err := s.engine.SubmitBatch(tasks)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSourceDisabled) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, s.logger, status, err.Error())
		return
	}
	writeJSON(w, s.logger, http.StatusAccepted, map[string]any{"task_ids": ids})
}

// scrapeSingle submits one task and immediately runs a one-task batch, so the
// caller gets a result without a separate trigger.
func (s *Server) scrapeSingle(w http.ResponseWriter, r *http.Request) {
	var req scrapeSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, s.logger, http.StatusBadRequest, "url required")
		return
	}

	id, err := s.engine.Submit(scraper.Task{
		URL:      req.URL,
		Source:   scraper.ParseSource(req.Source),
		Priority: req.Priority,
		Metadata: req.Metadata,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSourceDisabled) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, s.logger, status, err.Error())
		return
	}

	processed := s.engine.RunBatch(r.Context(), 1)
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"task_id":   id,
		"processed": processed,
	})
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil {
		// Empty body means run everything pending.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	processed := s.engine.RunBatch(r.Context(), req.Count)
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"processed": processed})
}

func (s *Server) listResults(w http.ResponseWriter, _ *http.Request) {
	results := s.engine.Results()
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"total":   len(results),
		"results": results,
	})
}

func (s *Server) listFailedResults(w http.ResponseWriter, _ *http.Request) {
	results := s.engine.FailedResults()
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"total":   len(results),
		"results": results,
	})
}

func (s *Server) clearResults(w http.ResponseWriter, _ *http.Request) {
	s.engine.ClearResults()
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) getTaskState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	state, ok := s.engine.TaskState(id)
	if !ok {
		writeError(w, s.logger, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"task_id": id,
		"state":   string(state),
	})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.engine.Stats())
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}
