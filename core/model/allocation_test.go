package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearAllocationCheckSums(t *testing.T) {
	alloc := YearAllocation{Year: 2030, Shares: map[string]map[string]float64{
		"bus": {"diesel": 0.7, "electric": 0.3},
		"van": {"diesel": 1.0},
	}}
	assert.True(t, alloc.CheckSums())

	alloc.Shares["bus"]["electric"] = 0.2
	assert.False(t, alloc.CheckSums())

	alloc.Shares["bus"] = map[string]float64{"diesel": 1.1, "electric": -0.1}
	assert.False(t, alloc.CheckSums(), "negative shares are rejected")

	empty := YearAllocation{Year: 2030, Shares: map[string]map[string]float64{}}
	assert.True(t, empty.CheckSums())
}

func TestYearAllocationClone(t *testing.T) {
	alloc := YearAllocation{Year: 2030, Shares: map[string]map[string]float64{
		"bus": {"diesel": 0.7, "electric": 0.3},
	}}
	cp := alloc.Clone()
	cp.Shares["bus"]["diesel"] = 0.1
	assert.Equal(t, 0.7, alloc.Share("bus", "diesel"), "clone must not alias the original")
	assert.Equal(t, 0.0, alloc.Share("bus", "hydrogen"), "missing pathways read as zero")
}

func TestVehicleTypeSpecValidate(t *testing.T) {
	valid := VehicleTypeSpec{
		ID: "bus", Category: "transit", AnnualKM: 50000, FleetSize: 10,
		Pathways: []PathwaySpec{
			{Pathway: "diesel", TailpipeFactor: 1, LifecycleFactor: 1.2, ReadinessLevel: 9},
		},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*VehicleTypeSpec)
	}{
		{"missing id", func(s *VehicleTypeSpec) { s.ID = "" }},
		{"no pathways", func(s *VehicleTypeSpec) { s.Pathways = nil }},
		{"duplicate pathway", func(s *VehicleTypeSpec) {
			s.Pathways = append(s.Pathways, s.Pathways[0])
		}},
		{"readiness out of range", func(s *VehicleTypeSpec) { s.Pathways[0].ReadinessLevel = 10 }},
		{"lifecycle below tailpipe", func(s *VehicleTypeSpec) { s.Pathways[0].LifecycleFactor = 0.5 }},
		{"negative fleet", func(s *VehicleTypeSpec) { s.FleetSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			s.Pathways = append([]PathwaySpec(nil), valid.Pathways...)
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestPathwayEmissionsFactor(t *testing.T) {
	p := PathwaySpec{TailpipeFactor: 0.2, LifecycleFactor: 0.5}
	assert.Equal(t, 0.5, p.EmissionsFactor(BasisLifecycle))
	assert.Equal(t, 0.2, p.EmissionsFactor(BasisTailpipe))
}
