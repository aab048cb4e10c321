package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/optimizer"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScenarioRoundTrip(t *testing.T) {
	s := openTestStore(t)

	sc := model.ScenarioDefinition{
		ID:              "city-fleet",
		Name:            "City fleet 2040",
		Years:           []int{2025, 2030, 2035, 2040},
		VehicleTypes:    []string{"urban_bus"},
		TargetReduction: 0.5,
	}
	require.NoError(t, s.SaveScenario(sc))

	got, err := s.GetScenario("city-fleet")
	require.NoError(t, err)
	assert.Equal(t, sc.Name, got.Name)
	assert.Equal(t, sc.Years, got.Years)

	// Saving again updates in place.
	sc.Name = "City fleet 2040 v2"
	require.NoError(t, s.SaveScenario(sc))
	list, err := s.ListScenarios()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "City fleet 2040 v2", list[0].Name)

	require.NoError(t, s.DeleteScenario("city-fleet"))
	_, err = s.GetScenario("city-fleet")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSaveScenarioRequiresID(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveScenario(model.ScenarioDefinition{Name: "anonymous"})
	assert.True(t, errors.Is(err, model.ErrInvalidScenario))
}

func TestResultRoundTrip(t *testing.T) {
	s := openTestStore(t)

	res := &optimizer.Result{
		RunID:          "run-1",
		ScenarioID:     "city-fleet",
		Fingerprint:    "abc",
		Status:         model.StatusComplete,
		FinalReduction: 0.42,
		Finished:       time.Now(),
	}
	require.NoError(t, s.SaveResult(res))

	got, err := s.GetResult("run-1")
	require.NoError(t, err)
	assert.Equal(t, res.ScenarioID, got.ScenarioID)
	assert.Equal(t, model.StatusComplete, got.Status)
	assert.InDelta(t, 0.42, got.FinalReduction, 1e-12)

	later := &optimizer.Result{
		RunID:       "run-2",
		ScenarioID:  "city-fleet",
		Fingerprint: "def",
		Status:      model.StatusPartial,
		Finished:    time.Now().Add(time.Hour),
	}
	require.NoError(t, s.SaveResult(later))

	latest, err := s.LatestResult("city-fleet")
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)

	_, err = s.LatestResult("unknown")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
