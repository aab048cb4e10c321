package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitionlab/fleetpath/core/model"
)

func specs() []model.VehicleTypeSpec {
	return []model.VehicleTypeSpec{
		{
			ID: "bus", Category: "transit", AnnualKM: 50000, FleetSize: 10,
			Pathways: []model.PathwaySpec{
				{Pathway: "diesel", TailpipeFactor: 1, LifecycleFactor: 1.2, ReadinessLevel: 9},
			},
		},
		{
			ID: "van", Category: "delivery", AnnualKM: 20000, FleetSize: 40,
			Pathways: []model.PathwaySpec{
				{Pathway: "diesel", TailpipeFactor: 0.3, LifecycleFactor: 0.4, ReadinessLevel: 9},
			},
		},
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	dup := append(specs(), specs()[0])
	_, err := New(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLookup(t *testing.T) {
	cat, err := New(specs())
	require.NoError(t, err)

	spec, err := cat.Lookup("bus")
	require.NoError(t, err)
	assert.Equal(t, "transit", spec.Category)

	_, err = cat.Lookup("tram")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	assert.Equal(t, []string{"bus", "van"}, cat.IDs())
	assert.Equal(t, 2, cat.Len())
}

func TestVersionTracksContent(t *testing.T) {
	a, err := New(specs())
	require.NoError(t, err)
	b, err := New(specs())
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version(), "same content yields the same version")

	changed := specs()
	changed[0].FleetSize = 11
	c, err := New(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
        "vehicle_types": [
            {
                "id": "bus",
                "category": "transit",
                "annual_km": 50000,
                "fleet_size": 10,
                "pathways": [
                    {"pathway": "diesel", "tailpipe_factor": 1, "lifecycle_factor": 1.2, "readiness_level": 9}
                ]
            }
        ]
    }`), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	spec, err := cat.Lookup("bus")
	require.NoError(t, err)
	assert.Equal(t, 500000.0, spec.ActivityKM())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vehicle_types:
  - id: van
    category: delivery
    annual_km: 20000
    fleet_size: 40
    pathways:
      - pathway: diesel
        tailpipe_factor: 0.3
        lifecycle_factor: 0.4
        readiness_level: 9
`), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"van"}, cat.IDs())
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load("catalog.toml")
	require.Error(t, err)
}
