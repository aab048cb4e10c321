package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScenario() ScenarioDefinition {
	return ScenarioDefinition{
		ID:              "base",
		Years:           []int{2025, 2030, 2035, 2040},
		VehicleTypes:    []string{"bus"},
		TargetReduction: 0.5,
		MaxAnnualChange: 0.1,
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScenarioDefinition)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ScenarioDefinition) {}},
		{name: "too few years", mutate: func(s *ScenarioDefinition) { s.Years = []int{2025} }, wantErr: true},
		{
			name: "too many years",
			mutate: func(s *ScenarioDefinition) {
				s.Years = []int{2025, 2026, 2027, 2028, 2029, 2030, 2031, 2032, 2033, 2034, 2035}
			},
			wantErr: true,
		},
		{name: "unsorted years", mutate: func(s *ScenarioDefinition) { s.Years = []int{2030, 2025} }, wantErr: true},
		{name: "duplicate years", mutate: func(s *ScenarioDefinition) { s.Years = []int{2025, 2025} }, wantErr: true},
		{name: "baseline after horizon", mutate: func(s *ScenarioDefinition) { s.BaselineYear = 2030 }, wantErr: true},
		{name: "target above one", mutate: func(s *ScenarioDefinition) { s.TargetReduction = 1.5 }, wantErr: true},
		{name: "negative target", mutate: func(s *ScenarioDefinition) { s.TargetReduction = -0.1 }, wantErr: true},
		{name: "zero ramp", mutate: func(s *ScenarioDefinition) { s.MaxAnnualChange = 0 }, wantErr: true},
		{name: "ramp below floor", mutate: func(s *ScenarioDefinition) { s.MaxAnnualChange = 0.04 }, wantErr: true},
		{name: "ramp above cap", mutate: func(s *ScenarioDefinition) { s.MaxAnnualChange = 0.35 }, wantErr: true},
		{name: "negative weight", mutate: func(s *ScenarioDefinition) { s.Weights.Cost = -1 }, wantErr: true},
		{
			name: "milestone outside horizon",
			mutate: func(s *ScenarioDefinition) {
				s.Milestones = []Milestone{{Year: 2050, Reduction: 0.3}}
			},
			wantErr: true,
		},
		{
			name: "milestones out of order",
			mutate: func(s *ScenarioDefinition) {
				s.Milestones = []Milestone{{Year: 2035, Reduction: 0.3}, {Year: 2030, Reduction: 0.1}}
			},
			wantErr: true,
		},
		{
			name: "initial shares not summing to one",
			mutate: func(s *ScenarioDefinition) {
				s.InitialShares = map[string]map[string]float64{"bus": {"diesel": 0.5}}
			},
			wantErr: true,
		},
		{
			name: "negative initial share",
			mutate: func(s *ScenarioDefinition) {
				s.InitialShares = map[string]map[string]float64{"bus": {"diesel": 1.2, "electric": -0.2}}
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validScenario()
			tt.mutate(&sc)
			err := sc.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidScenario))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScenarioSetDefaults(t *testing.T) {
	sc := ScenarioDefinition{Years: []int{2025, 2030}}
	sc.SetDefaults()
	assert.Equal(t, 2025, sc.BaselineYear)
	assert.Equal(t, 0.1, sc.MaxAnnualChange)
	assert.Equal(t, 1.0, sc.Weights.Emissions)
	assert.Equal(t, []RelaxationStep{RelaxRamp, RelaxTarget}, sc.Relaxation.Order)
	assert.Equal(t, 0.05, sc.Relaxation.RampStep)
	assert.Equal(t, 2, sc.Relaxation.MaxRampSteps)
}

func TestScenarioLint(t *testing.T) {
	sc := validScenario()
	assert.Empty(t, sc.Lint(), "a moderate scenario carries no advisories")

	aggressive := validScenario()
	aggressive.TargetReduction = 0.9
	aggressive.MaxAnnualChange = 0.25
	advisories := aggressive.Lint()
	require.Len(t, advisories, 2)
	assert.Contains(t, advisories[0], "very high reduction target")
	assert.Contains(t, advisories[1], "high annual change rate")

	timid := validScenario()
	timid.TargetReduction = 0.05
	timid.MaxAnnualChange = 0.05
	advisories = timid.Lint()
	require.Len(t, advisories, 2)
	assert.Contains(t, advisories[0], "low reduction target")
	assert.Contains(t, advisories[1], "low annual change rate")

	sparse := validScenario()
	sparse.Years = []int{2018, 2030, 2045, 2062}
	advisories = sparse.Lint()
	assert.Contains(t, advisories[0], "large gap between 2018 and 2030")
	assert.Contains(t, advisories[1], "large gap between 2030 and 2045")
	assert.Contains(t, advisories[2], "large gap between 2045 and 2062")
	assert.Contains(t, advisories[3], "starting year before 2020")
	assert.Contains(t, advisories[4], "end year after 2060")
}

func TestRequiredReductionInterpolation(t *testing.T) {
	sc := validScenario()
	sc.Milestones = []Milestone{{Year: 2030, Reduction: 0.1}}

	// Zero at the start, milestone value exactly at its year, linear in
	// between, target at the end.
	assert.InDelta(t, 0.0, sc.RequiredReduction(2025), 1e-12)
	assert.InDelta(t, 0.1, sc.RequiredReduction(2030), 1e-12)
	assert.InDelta(t, 0.06, sc.RequiredReduction(2028), 1e-12)
	assert.InDelta(t, 0.3, sc.RequiredReduction(2035), 1e-12)
	assert.InDelta(t, 0.5, sc.RequiredReduction(2040), 1e-12)
	// Outside the horizon the trajectory is clamped.
	assert.InDelta(t, 0.0, sc.RequiredReduction(2020), 1e-12)
	assert.InDelta(t, 0.5, sc.RequiredReduction(2050), 1e-12)
}

func TestRequiredReductionWithoutMilestones(t *testing.T) {
	sc := validScenario()
	assert.InDelta(t, 0.5*5.0/15, sc.RequiredReduction(2030), 1e-12)
	assert.InDelta(t, 0.5*10.0/15, sc.RequiredReduction(2035), 1e-12)
}

func TestCapacityProfileAtYear(t *testing.T) {
	p := CapacityProfile{BaseKM: 1000, AnnualGrowth: 0.1}
	assert.InDelta(t, 1000, p.AtYear(0), 1e-9)
	assert.InDelta(t, 1100, p.AtYear(1), 1e-9)
	assert.InDelta(t, 1210, p.AtYear(2), 1e-9)
}
