package scenarios

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/optimizer"
	"github.com/transitionlab/fleetpath/core/progress"
)

type memStore struct {
	scenarios map[string]model.ScenarioDefinition
	results   map[string]*optimizer.Result
}

func newMemStore() *memStore {
	return &memStore{
		scenarios: make(map[string]model.ScenarioDefinition),
		results:   make(map[string]*optimizer.Result),
	}
}

func (m *memStore) SaveScenario(sc model.ScenarioDefinition) error {
	m.scenarios[sc.ID] = sc
	return nil
}

func (m *memStore) GetScenario(id string) (model.ScenarioDefinition, error) {
	sc, ok := m.scenarios[id]
	if !ok {
		return model.ScenarioDefinition{}, fmt.Errorf("%w: scenario %s", model.ErrNotFound, id)
	}
	return sc, nil
}

func (m *memStore) ListScenarios() ([]model.ScenarioDefinition, error) {
	out := make([]model.ScenarioDefinition, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		out = append(out, sc)
	}
	return out, nil
}

func (m *memStore) DeleteScenario(id string) error {
	delete(m.scenarios, id)
	return nil
}

func (m *memStore) GetResult(runID string) (*optimizer.Result, error) {
	res, ok := m.results[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	return res, nil
}

func (m *memStore) LatestResult(scenarioID string) (*optimizer.Result, error) {
	for _, res := range m.results {
		if res.ScenarioID == scenarioID {
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: no results for %s", model.ErrNotFound, scenarioID)
}

type fakeSolver struct {
	res       *optimizer.Result
	err       error
	snap      progress.Snapshot
	tracking  bool
	cancelled bool
}

func (f *fakeSolver) Solve(context.Context, model.ScenarioDefinition) (*optimizer.Result, error) {
	return f.res, f.err
}

func (f *fakeSolver) Progress(string) (progress.Snapshot, bool) {
	return f.snap, f.tracking
}

func (f *fakeSolver) Cancel(string) bool {
	f.cancelled = f.tracking
	return f.tracking
}

func validScenarioJSON() string {
	return `{
        "id": "city",
        "name": "City fleet",
        "years": [2025, 2030, 2035],
        "vehicle_types": ["urban_bus"],
        "target_reduction": 0.4
    }`
}

func TestCreateAndGetScenario(t *testing.T) {
	store := newMemStore()
	h := NewHandler(store, &fakeSolver{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios", strings.NewReader(validScenarioJSON())))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/city", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sc model.ScenarioDefinition
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sc))
	assert.Equal(t, "City fleet", sc.Name)
	assert.Equal(t, 0.1, sc.MaxAnnualChange, "defaults are applied before storing")
}

func TestCreateReturnsAdvisoryWarnings(t *testing.T) {
	h := NewHandler(newMemStore(), &fakeSolver{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios", strings.NewReader(`{
        "id": "ambitious",
        "years": [2025, 2030],
        "vehicle_types": ["urban_bus"],
        "target_reduction": 0.95
    }`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Scenario model.ScenarioDefinition `json:"scenario"`
		Warnings []string                 `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ambitious", resp.Scenario.ID)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "very high reduction target")
}

func TestCreateRejectsInvalidScenario(t *testing.T) {
	h := NewHandler(newMemStore(), &fakeSolver{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios",
		strings.NewReader(`{"id": "bad", "years": [2025]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScenarioNotFound(t *testing.T) {
	h := NewHandler(newMemStore(), &fakeSolver{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSolveReturnsResult(t *testing.T) {
	store := newMemStore()
	solver := &fakeSolver{res: &optimizer.Result{RunID: "run-1", ScenarioID: "city", Status: model.StatusComplete}}
	h := NewHandler(store, solver)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios", strings.NewReader(validScenarioJSON())))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios/city/solve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res optimizer.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "run-1", res.RunID)
}

func TestProgressAndCancel(t *testing.T) {
	solver := &fakeSolver{
		snap:     progress.Snapshot{RunID: "run-1", Year: 2030, Fraction: 0.5},
		tracking: true,
	}
	h := NewHandler(newMemStore(), solver)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/city/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap progress.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, 2030, snap.Year)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scenarios/city/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, solver.cancelled)

	solver.tracking = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/idle/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunLookup(t *testing.T) {
	store := newMemStore()
	store.results["run-7"] = &optimizer.Result{RunID: "run-7", ScenarioID: "city"}
	h := NewHandler(store, &fakeSolver{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/city/result", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/scenarios/city", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
