package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/modcheck/pkg/history"
	"github.com/platinummonkey/modcheck/pkg/httputil"
)

// maxRunsLimit caps GET /v1/runs?limit=.
const maxRunsLimit = 500

// RunsResponse lists recorded runs.
type RunsResponse struct {
	Runs  []*history.Run `json:"runs"`
	Count int            `json:"count"`
}

// StartRunResponse acknowledges a triggered run.
type StartRunResponse struct {
	Status string `json:"status"`
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		httputil.WriteServiceUnavailable(w, "run history is not configured")
		return false
	}
	return true
}

// listRuns handles GET /v1/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit, err := httputil.ParseLimit(r, history.DefaultLimit, maxRunsLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	_ = httputil.WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// latestRun handles GET /v1/runs/latest
func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	run, err := s.history.Latest(r.Context())
	s.writeRun(w, run, err)
}

// getRun handles GET /v1/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	run, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	s.writeRun(w, run, err)
}

func (s *Server) writeRun(w http.ResponseWriter, run *history.Run, err error) {
	switch {
	case errors.Is(err, history.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case err != nil:
		httputil.WriteInternalError(w, err)
	default:
		_ = httputil.WriteJSON(w, http.StatusOK, run)
	}
}

// startRun handles POST /v1/runs
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		httputil.WriteServiceUnavailable(w, "runs cannot be triggered")
		return
	}
	if !s.TryRun() {
		httputil.WriteConflict(w, "a run is already in progress")
		return
	}
	_ = httputil.WriteJSON(w, http.StatusAccepted, StartRunResponse{Status: "accepted"})
}
