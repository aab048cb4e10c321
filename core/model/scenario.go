package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ShareTol is the relative tolerance applied to share-sum and ramp checks.
const ShareTol = 1e-6

// Milestone pins the required cumulative emissions reduction at a given year.
// Between milestones the requirement is interpolated linearly.
type Milestone struct {
	Year      int     `json:"year"`
	Reduction float64 `json:"reduction"`
}

// ObjectiveWeights balances emissions against cost in the solve objective.
type ObjectiveWeights struct {
	Emissions float64 `json:"emissions"`
	Cost      float64 `json:"cost"`
}

// CapacityProfile describes the distance a pathway's infrastructure can serve
// per year, growing from a base value.
type CapacityProfile struct {
	BaseKM       float64 `json:"base_km"`
	AnnualGrowth float64 `json:"annual_growth"`
}

// AtYear returns the capacity available in the given year relative to the
// first horizon year.
func (c CapacityProfile) AtYear(yearsFromStart int) float64 {
	if yearsFromStart <= 0 {
		return c.BaseKM
	}
	return c.BaseKM * math.Pow(1+c.AnnualGrowth, float64(yearsFromStart))
}

// ConstraintThresholds configures the per-kind constraint thresholds for a
// scenario. Pathway-scoped maps accept either a bare pathway identifier
// (global scope) or "type/pathway" to target a single vehicle type.
type ConstraintThresholds struct {
	// ReadinessRampPerYear is the relative growth applied to the
	// technology-readiness adoption ceiling each year.
	ReadinessRampPerYear float64 `json:"readiness_ramp_per_year"`
	// MarketPenetrationMax caps the adoption share per pathway.
	MarketPenetrationMax map[string]float64 `json:"market_penetration_max"`
	// InfrastructureCapacity limits the distance a pathway can serve per year.
	InfrastructureCapacity map[string]CapacityProfile `json:"infrastructure_capacity"`
	// CostCeilingMultiple bounds the weighted cost relative to the baseline
	// year. Zero disables the check.
	CostCeilingMultiple float64 `json:"cost_ceiling_multiple"`
	// PolicyMinShare and PolicyMaxShare impose mandated share bounds.
	PolicyMinShare map[string]float64 `json:"policy_min_share"`
	PolicyMaxShare map[string]float64 `json:"policy_max_share"`
}

// RelaxationStep identifies one rung of the relaxation ladder.
type RelaxationStep int

const (
	RelaxRamp RelaxationStep = iota
	RelaxTarget
)

// String returns a human-readable representation of the step.
func (s RelaxationStep) String() string {
	switch s {
	case RelaxRamp:
		return "ramp"
	case RelaxTarget:
		return "target"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the step as its string form.
func (s RelaxationStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (s *RelaxationStep) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "ramp":
		*s = RelaxRamp
	case "target":
		*s = RelaxTarget
	default:
		return fmt.Errorf("unknown relaxation step %q", v)
	}
	return nil
}

// RelaxationPolicy configures the order and magnitude of constraint
// loosenings attempted before a year is declared infeasible.
type RelaxationPolicy struct {
	Order []RelaxationStep `json:"order"`
	// RampStep is added to the maximum annual change per ramp relaxation.
	RampStep float64 `json:"ramp_step"`
	// MaxRampSteps limits how often the ramp may be relaxed per year.
	MaxRampSteps int `json:"max_ramp_steps"`
}

// SetDefaults applies the default ladder: ramp first, then target.
func (p *RelaxationPolicy) SetDefaults() {
	if len(p.Order) == 0 {
		p.Order = []RelaxationStep{RelaxRamp, RelaxTarget}
	}
	if p.RampStep <= 0 {
		p.RampStep = 0.05
	}
	if p.MaxRampSteps <= 0 {
		p.MaxRampSteps = 2
	}
}

// ScenarioDefinition fully specifies one planning run. It is created by the
// caller and read-only for the engine.
type ScenarioDefinition struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Years        []int    `json:"years"`
	VehicleTypes []string `json:"vehicle_types"`
	// BaselineYear anchors the emissions reference. Defaults to the first
	// horizon year.
	BaselineYear int `json:"baseline_year"`
	// InitialShares is the committed allocation preceding the first horizon
	// year, vehicle type -> pathway -> share. Types without an entry start at
	// 100% of their highest-emission pathway.
	InitialShares map[string]map[string]float64 `json:"initial_shares"`
	// TargetReduction is the cumulative emissions reduction required by the
	// final horizon year, as a fraction of baseline emissions.
	TargetReduction float64     `json:"target_reduction"`
	Milestones      []Milestone `json:"milestones"`
	// MaxAnnualChange bounds the absolute year-over-year change of any
	// pathway share.
	MaxAnnualChange float64              `json:"max_annual_change"`
	Weights         ObjectiveWeights     `json:"weights"`
	Basis           EmissionsBasis       `json:"basis"`
	Thresholds      ConstraintThresholds `json:"thresholds"`
	Relaxation      RelaxationPolicy     `json:"relaxation"`
	// YearBudget is the wall-clock budget per year step. Zero uses the
	// engine default.
	YearBudget time.Duration `json:"year_budget"`
}

// SetDefaults fills unset fields with the documented defaults.
func (s *ScenarioDefinition) SetDefaults() {
	if s.BaselineYear == 0 && len(s.Years) > 0 {
		s.BaselineYear = s.Years[0]
	}
	if s.MaxAnnualChange == 0 {
		s.MaxAnnualChange = 0.1
	}
	if s.Weights.Emissions == 0 && s.Weights.Cost == 0 {
		s.Weights.Emissions = 1
	}
	if s.Thresholds.ReadinessRampPerYear == 0 {
		s.Thresholds.ReadinessRampPerYear = 0.1
	}
	s.Relaxation.SetDefaults()
}

// Validate fails fast on malformed or internally inconsistent definitions.
func (s ScenarioDefinition) Validate() error {
	if len(s.Years) < 2 {
		return fmt.Errorf("%w: at least 2 years must be specified", ErrInvalidScenario)
	}
	if len(s.Years) > 10 {
		return fmt.Errorf("%w: at most 10 years allowed", ErrInvalidScenario)
	}
	for i := 1; i < len(s.Years); i++ {
		if s.Years[i] <= s.Years[i-1] {
			return fmt.Errorf("%w: years must be strictly increasing", ErrInvalidScenario)
		}
	}
	if s.BaselineYear > s.Years[0] {
		return fmt.Errorf("%w: baseline year %d after first horizon year %d", ErrInvalidScenario, s.BaselineYear, s.Years[0])
	}
	if s.TargetReduction < 0 || s.TargetReduction > 1 {
		return fmt.Errorf("%w: target reduction must be between 0 and 1", ErrInvalidScenario)
	}
	if s.MaxAnnualChange < 0.05 || s.MaxAnnualChange > 0.3 {
		return fmt.Errorf("%w: max annual change must be between 0.05 and 0.3", ErrInvalidScenario)
	}
	if s.Weights.Emissions < 0 || s.Weights.Cost < 0 {
		return fmt.Errorf("%w: objective weights must be non-negative", ErrInvalidScenario)
	}
	prev := s.Years[0]
	for _, m := range s.Milestones {
		if m.Year <= prev && m.Year != s.Years[0] {
			return fmt.Errorf("%w: milestone years must be strictly increasing", ErrInvalidScenario)
		}
		if m.Year < s.Years[0] || m.Year > s.Years[len(s.Years)-1] {
			return fmt.Errorf("%w: milestone year %d outside horizon", ErrInvalidScenario, m.Year)
		}
		if m.Reduction < 0 || m.Reduction > 1 {
			return fmt.Errorf("%w: milestone reduction must be between 0 and 1", ErrInvalidScenario)
		}
		prev = m.Year
	}
	for vt, shares := range s.InitialShares {
		var sum float64
		for p, sh := range shares {
			if sh < 0 {
				return fmt.Errorf("%w: initial share for %s/%s is negative", ErrInvalidScenario, vt, p)
			}
			sum += sh
		}
		if math.Abs(sum-1) > ShareTol {
			return fmt.Errorf("%w: initial shares for %s sum to %g, want 1", ErrInvalidScenario, vt, sum)
		}
	}
	return nil
}

// Lint returns advisory findings for parameters that pass validation but are
// likely to produce poor plans. Advisories never block a run.
func (s ScenarioDefinition) Lint() []string {
	var out []string
	for i := 1; i < len(s.Years); i++ {
		if s.Years[i]-s.Years[i-1] > 10 {
			out = append(out, fmt.Sprintf("large gap between %d and %d, consider intermediate years", s.Years[i-1], s.Years[i]))
		}
	}
	if len(s.Years) > 0 {
		if s.Years[0] < 2020 {
			out = append(out, "starting year before 2020 may not reflect current technology")
		}
		if s.Years[len(s.Years)-1] > 2060 {
			out = append(out, "end year after 2060 may have high uncertainty")
		}
	}
	if s.TargetReduction > 0.8 {
		out = append(out, "very high reduction target, consider intermediate milestones")
	} else if s.TargetReduction < 0.1 {
		out = append(out, "low reduction target, may not achieve significant decarbonization")
	}
	if s.MaxAnnualChange > 0.2 {
		out = append(out, "high annual change rate, a more gradual transition may be easier to achieve")
	} else if s.MaxAnnualChange > 0 && s.MaxAnnualChange < 0.08 {
		out = append(out, "low annual change rate, may not meet targets")
	}
	if len(s.VehicleTypes) > 10 {
		out = append(out, "many vehicle types selected, optimization may be slow")
	}
	return out
}

// RequiredReduction returns the cumulative reduction required at the given
// year, interpolated linearly between milestones. The trajectory starts at
// zero in the first horizon year and ends at TargetReduction in the last.
func (s ScenarioDefinition) RequiredReduction(year int) float64 {
	first, last := s.Years[0], s.Years[len(s.Years)-1]
	points := make([]Milestone, 0, len(s.Milestones)+2)
	points = append(points, Milestone{Year: first, Reduction: 0})
	points = append(points, s.Milestones...)
	if len(s.Milestones) == 0 || s.Milestones[len(s.Milestones)-1].Year < last {
		points = append(points, Milestone{Year: last, Reduction: s.TargetReduction})
	}
	if year <= points[0].Year {
		return points[0].Reduction
	}
	for i := 1; i < len(points); i++ {
		if year <= points[i].Year {
			a, b := points[i-1], points[i]
			if b.Year == a.Year {
				return b.Reduction
			}
			frac := float64(year-a.Year) / float64(b.Year-a.Year)
			return a.Reduction + frac*(b.Reduction-a.Reduction)
		}
	}
	return points[len(points)-1].Reduction
}
