// Package server exposes subscriptions and on-demand monitoring over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
	"testudot/internal/monitor"
	"testudot/internal/subscriptions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_server_list_mappings  = "server.list-mappings"
	report_server_add_mapping    = "server.add-mapping"
	report_server_remove_mapping = "server.remove-mapping"
	report_server_run_monitor    = "server.run-monitor"
)

const apiKeyHeader = "X-API-Key"

// Runner is the part of the monitor the server triggers.
type Runner interface {
	RunWatched(ctx context.Context) ([]monitor.CycleResult, error)
	TermID() string
}

type Server struct {
	runner    Runner
	directory subscriptions.Directory
	apiKey    string
	tel       telemetry.API

	// only one batch runs at a time, a trigger during a batch is rejected.
	running atomic.Bool
}

// NewServer creates a server, an empty apiKey disables authentication.
func NewServer(runner Runner, directory subscriptions.Directory, apiKey string, tel telemetry.API) *Server {
	assert.NotNil(runner)
	assert.NotNil(directory)
	assert.NotNil(tel)
	return &Server{
		runner:    runner,
		directory: directory,
		apiKey:    apiKey,
		tel:       telemetry.NewScopedAPI("server", tel),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireApiKey)
		r.Get("/api/mappings", s.handleListMappings)
		r.Post("/api/mappings", s.handleAddMapping)
		r.Delete("/api/mappings/{email}", s.handleRemoveMapping)
		r.Post("/api/monitor", s.handleMonitor)
	})
	return r
}

func (s *Server) requireApiKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get(apiKeyHeader) != s.apiKey {
			writeError(w, http.StatusForbidden, "invalid or missing api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mapping, err := s.directory.ListAll(r.Context())
	if err != nil {
		s.tel.ReportBroken(report_server_list_mappings, err)
		writeError(w, http.StatusInternalServerError, "failed to read mappings")
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

type addMappingRequest struct {
	Email   string   `json:"email"`
	Courses []string `json:"courses"`
}

func (s *Server) handleAddMapping(w http.ResponseWriter, r *http.Request) {
	var req addMappingRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	err = s.directory.Add(r.Context(), req.Email, req.Courses)
	if errors.Is(err, subscriptions.ErrInvalidEmail) || errors.Is(err, subscriptions.ErrNoCourses) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.tel.ReportBroken(report_server_add_mapping, err)
		writeError(w, http.StatusInternalServerError, "failed to save mapping")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	found, err := s.directory.Remove(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.tel.ReportBroken(report_server_remove_mapping, err)
		writeError(w, http.StatusInternalServerError, "failed to remove mapping")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no mapping for email")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cycleResponse struct {
	CourseID    string   `json:"course_id"`
	Status      string   `json:"status"`
	Events      int      `json:"events"`
	Recipients  []string `json:"recipients"`
	Error       string   `json:"error,omitempty"`
	NotifyError string   `json:"notify_error,omitempty"`
}

type monitorResponse struct {
	Status  string          `json:"status"`
	TermID  string          `json:"term_id"`
	Results []cycleResponse `json:"results"`
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a monitoring batch is already running")
		return
	}
	defer s.running.Store(false)

	results, err := s.runner.RunWatched(r.Context())
	if err != nil {
		s.tel.ReportBroken(report_server_run_monitor, err)
		writeError(w, http.StatusInternalServerError, "failed to read watched courses")
		return
	}

	res := monitorResponse{
		Status:  "success",
		TermID:  s.runner.TermID(),
		Results: make([]cycleResponse, len(results)),
	}
	for i, result := range results {
		cycle := cycleResponse{
			CourseID:   result.CourseID,
			Status:     string(result.Status),
			Events:     result.EventsEmitted,
			Recipients: result.Recipients,
		}
		if cycle.Recipients == nil {
			cycle.Recipients = []string{}
		}
		if result.Err != nil {
			cycle.Error = result.Err.Error()
		}
		if result.NotifyErr != nil {
			cycle.NotifyError = result.NotifyErr.Error()
		}
		res.Results[i] = cycle
	}
	writeJSON(w, http.StatusOK, res)
}
