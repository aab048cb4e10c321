// Package scenarios exposes scenario management and solve endpoints over
// HTTP.
package scenarios

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/optimizer"
	"github.com/transitionlab/fleetpath/core/progress"
	"github.com/transitionlab/fleetpath/infra/logger"
)

// Store is the persistence surface the handlers need.
type Store interface {
	SaveScenario(model.ScenarioDefinition) error
	GetScenario(id string) (model.ScenarioDefinition, error)
	ListScenarios() ([]model.ScenarioDefinition, error)
	DeleteScenario(id string) error
	GetResult(runID string) (*optimizer.Result, error)
	LatestResult(scenarioID string) (*optimizer.Result, error)
}

// Solver runs a scenario to a result and tracks in-flight progress.
type Solver interface {
	Solve(ctx context.Context, sc model.ScenarioDefinition) (*optimizer.Result, error)
	Progress(scenarioID string) (progress.Snapshot, bool)
	Cancel(scenarioID string) bool
}

// Handler serves the scenario API.
type Handler struct {
	store  Store
	solver Solver
	log    logger.Logger
}

// NewHandler returns the API handler with all routes registered.
func NewHandler(store Store, solver Solver) http.Handler {
	h := &Handler{store: store, solver: solver, log: logger.New("api")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scenarios", h.list)
	mux.HandleFunc("POST /api/scenarios", h.create)
	mux.HandleFunc("GET /api/scenarios/{id}", h.get)
	mux.HandleFunc("DELETE /api/scenarios/{id}", h.delete)
	mux.HandleFunc("POST /api/scenarios/{id}/solve", h.solve)
	mux.HandleFunc("GET /api/scenarios/{id}/progress", h.progress)
	mux.HandleFunc("POST /api/scenarios/{id}/cancel", h.cancel)
	mux.HandleFunc("GET /api/scenarios/{id}/result", h.latestResult)
	mux.HandleFunc("GET /api/runs/{id}", h.run)
	return mux
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListScenarios()
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// createResponse echoes the stored scenario together with advisory warnings
// about parameters that validate but are likely to produce poor plans.
type createResponse struct {
	Scenario model.ScenarioDefinition `json:"scenario"`
	Warnings []string                 `json:"warnings,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var sc model.ScenarioDefinition
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sc.SetDefaults()
	if err := sc.Validate(); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.store.SaveScenario(sc); err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, createResponse{Scenario: sc, Warnings: sc.Lint()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.store.GetScenario(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteScenario(r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) solve(w http.ResponseWriter, r *http.Request) {
	sc, err := h.store.GetScenario(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.solver.Solve(r.Context(), sc)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.solver.Progress(r.PathValue("id"))
	if !ok {
		http.Error(w, "no run for scenario", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if !h.solver.Cancel(r.PathValue("id")) {
		http.Error(w, "no run for scenario", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) latestResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.LatestResult(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.GetResult(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("encode response: %v", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidScenario):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Errorf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
