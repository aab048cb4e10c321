package optimizer

import (
	"errors"
	"fmt"

	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/model"
)

// yearSolver runs one solve attempt for an assembled problem.
type yearSolver func(p *yearProblem) ([]float64, error)

// ladderResult captures a successful year solve and the relaxations it took.
type ladderResult struct {
	x           []float64
	problem     *yearProblem
	relaxations []model.AppliedRelaxation
}

// solveWithLadder attempts the year at full strictness and walks the
// configured relaxation ladder on infeasibility. The target-trajectory
// constraint is never relaxed for the final horizon year: that is the
// scenario target itself.
func (e *Engine) solveWithLadder(sc model.ScenarioDefinition, cat *catalog.Catalog, year, prevYear int, prior model.YearAllocation, baseE, baseC float64, solve yearSolver) (*ladderResult, error) {
	build := func(ramp float64, mask boundMask) (*yearProblem, []float64, error) {
		p, err := buildProblem(sc, cat, year, prevYear, prior, ramp, mask, baseE, baseC)
		if err != nil {
			return nil, nil, err
		}
		x, err := solve(p)
		return p, x, err
	}

	ramp := sc.MaxAnnualChange
	mask := allBounds()
	p, x, err := build(ramp, mask)
	if err == nil {
		return &ladderResult{x: x, problem: p}, nil
	}
	if !errors.Is(err, ErrInfeasible) && !errors.Is(err, errBoundsConflict) {
		return nil, err
	}

	var applied []model.AppliedRelaxation
	finalYear := year == sc.Years[len(sc.Years)-1]
	for _, step := range sc.Relaxation.Order {
		switch step {
		case model.RelaxRamp:
			for i := 0; i < sc.Relaxation.MaxRampSteps; i++ {
				ramp += sc.Relaxation.RampStep
				applied = append(applied, model.AppliedRelaxation{
					Year:   year,
					Step:   model.RelaxRamp,
					Detail: fmt.Sprintf("max annual change raised to %.2f", ramp),
				})
				e.log.Warnf("year %d infeasible, relaxing ramp to %.2f", year, ramp)
				if p, x, err = build(ramp, mask); err == nil {
					return &ladderResult{x: x, problem: p, relaxations: applied}, nil
				}
			}
		case model.RelaxTarget:
			if finalYear || !mask.target {
				continue
			}
			mask.target = false
			applied = append(applied, model.AppliedRelaxation{
				Year:   year,
				Step:   model.RelaxTarget,
				Detail: "target trajectory relaxed for this year, scenario behind target",
			})
			e.log.Warnf("year %d infeasible, relaxing target trajectory", year)
			if p, x, err = build(ramp, mask); err == nil {
				return &ladderResult{x: x, problem: p, relaxations: applied}, nil
			}
		}
	}

	binding := e.diagnose(sc, cat, year, prevYear, prior, baseE, baseC, solve)
	// Every ramp rung was consumed before giving up, so the ramp bound is part
	// of the conflict even when no single-family trial isolates it (with one
	// pathway per type, for example, removing the ramp alone never helps).
	for _, rx := range applied {
		if rx.Step == model.RelaxRamp && !hasBinding(binding, BindingRamp) {
			binding = append([]BindingConstraint{BindingRamp}, binding...)
			break
		}
	}
	return nil, &InfeasibleError{Year: year, Binding: binding, Relaxations: applied}
}

func hasBinding(set []BindingConstraint, b BindingConstraint) bool {
	for _, c := range set {
		if c == b {
			return true
		}
	}
	return false
}

// InfeasibleError reports a year for which the relaxation ladder was
// exhausted, with the minimal conflicting constraint set.
type InfeasibleError struct {
	Year        int
	Binding     []BindingConstraint
	Relaxations []model.AppliedRelaxation
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("year %d infeasible after relaxation, binding constraints: %v", e.Year, e.Binding)
}

// Unwrap allows errors.Is(err, ErrInfeasible).
func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// diagnose identifies the minimal conflicting constraint set by disabling
// one constraint family at a time on the original, unrelaxed problem: every
// family whose removal restores feasibility is binding.
func (e *Engine) diagnose(sc model.ScenarioDefinition, cat *catalog.Catalog, year, prevYear int, prior model.YearAllocation, baseE, baseC float64, solve yearSolver) []BindingConstraint {
	trials := []struct {
		name BindingConstraint
		mask boundMask
	}{
		{BindingRamp, boundMask{readiness: true, market: true, policy: true, target: true}},
		{BindingReadiness, boundMask{ramp: true, market: true, policy: true, target: true}},
		{BindingMarket, boundMask{ramp: true, readiness: true, policy: true, target: true}},
		{BindingPolicy, boundMask{ramp: true, readiness: true, market: true, target: true}},
		{BindingTarget, boundMask{ramp: true, readiness: true, market: true, policy: true}},
	}
	var binding []BindingConstraint
	for _, tr := range trials {
		p, err := buildProblem(sc, cat, year, prevYear, prior, sc.MaxAnnualChange, tr.mask, baseE, baseC)
		if err != nil {
			continue
		}
		if _, err := solve(p); err == nil {
			binding = append(binding, tr.name)
		}
	}
	if len(binding) == 0 {
		// No single family explains the conflict; report the joint set.
		for _, tr := range trials {
			binding = append(binding, tr.name)
		}
	}
	return binding
}
