// Package constraint evaluates candidate allocations against the configured
// constraint rules. Evaluation is pure: it never mutates state, the optimizer
// decides how to react to the resulting report.
package constraint

import (
	"fmt"
	"math"
	"sort"

	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/model"
)

// Manager evaluates the five constraint kinds against a candidate year
// allocation. The evaluator table is fixed at definition time.
type Manager struct{}

// NewManager returns a Manager.
func NewManager() *Manager { return &Manager{} }

type evalFunc func(ctx *evalContext) []Violation

// evalContext carries everything one validation pass needs.
type evalContext struct {
	scenario  model.ScenarioDefinition
	year      int
	yearIdx   int
	candidate model.YearAllocation
	prior     model.YearAllocation
	catalog   *catalog.Catalog
}

// evaluators is the fixed rule table: one evaluator per kind.
var evaluators = []struct {
	kind Kind
	fn   evalFunc
}{
	{KindTechnologyReadiness, evalReadiness},
	{KindMarketPenetration, evalMarketPenetration},
	{KindInfrastructureCapacity, evalInfrastructure},
	{KindCostCeiling, evalCostCeiling},
	{KindPolicyBound, evalPolicyBound},
}

// Validate checks the candidate allocation for the given year against every
// rule kind and returns the resulting report. prior is the committed
// allocation of the preceding year and is used for context only.
func (m *Manager) Validate(scenario model.ScenarioDefinition, year int, candidate, prior model.YearAllocation, cat *catalog.Catalog) Report {
	ctx := &evalContext{
		scenario:  scenario,
		year:      year,
		yearIdx:   year - scenario.Years[0],
		candidate: candidate,
		prior:     prior,
		catalog:   cat,
	}
	rep := Report{Compliant: true}
	for _, e := range evaluators {
		vs := e.fn(ctx)
		if len(vs) > 0 {
			rep.Compliant = false
			rep.Violations = append(rep.Violations, vs...)
		}
	}
	return rep
}

// ReadinessCeiling returns the maximum adoption share a pathway with the
// given readiness level may hold after yearsFromStart years. Mature pathways
// (level 9) are never capped; lower levels start at level/9 and grow by
// rampPerYear relative per year.
func ReadinessCeiling(level, yearsFromStart int, rampPerYear float64) float64 {
	if level >= 9 {
		return 1
	}
	base := float64(level) / 9.0
	ceiling := base * (1 + rampPerYear*float64(yearsFromStart))
	return math.Min(1, ceiling)
}

// scopedThreshold looks up a pathway threshold, preferring a "type/pathway"
// entry over the global pathway entry. ok reports whether any entry exists.
func scopedThreshold(m map[string]float64, vehicleType, pathway string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	if v, ok := m[vehicleType+"/"+pathway]; ok {
		return v, true
	}
	v, ok := m[pathway]
	return v, ok
}

// sortedTypes returns the candidate's vehicle types in stable order.
func (ctx *evalContext) sortedTypes() []string {
	ids := make([]string, 0, len(ctx.candidate.Shares))
	for id := range ctx.candidate.Shares {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func evalReadiness(ctx *evalContext) []Violation {
	var out []Violation
	ramp := ctx.scenario.Thresholds.ReadinessRampPerYear
	for _, vt := range ctx.sortedTypes() {
		spec, err := ctx.catalog.Lookup(vt)
		if err != nil {
			continue
		}
		for _, p := range spec.Pathways {
			share := ctx.candidate.Share(vt, p.Pathway)
			ceiling := ReadinessCeiling(p.ReadinessLevel, ctx.yearIdx, ramp)
			if share > ceiling+model.ShareTol {
				out = append(out, Violation{
					Kind:      KindTechnologyReadiness,
					Severity:  severityFor(share, ceiling),
					Scope:     vt,
					Pathway:   p.Pathway,
					Year:      ctx.year,
					Observed:  share,
					Threshold: ceiling,
					Mitigation: fmt.Sprintf("defer %s adoption for %s until readiness level %d matures, or lower the share to %.2f",
						p.Pathway, vt, p.ReadinessLevel, ceiling),
				})
			}
		}
	}
	return out
}

func evalMarketPenetration(ctx *evalContext) []Violation {
	var out []Violation
	for _, vt := range ctx.sortedTypes() {
		for p, share := range ctx.candidate.Shares[vt] {
			cap, ok := scopedThreshold(ctx.scenario.Thresholds.MarketPenetrationMax, vt, p)
			if !ok {
				continue
			}
			if share > cap+model.ShareTol {
				out = append(out, Violation{
					Kind:      KindMarketPenetration,
					Severity:  severityFor(share, cap),
					Scope:     vt,
					Pathway:   p,
					Year:      ctx.year,
					Observed:  share,
					Threshold: cap,
					Mitigation: fmt.Sprintf("cap %s share for %s at the configured market bound %.2f",
						p, vt, cap),
				})
			}
		}
	}
	return out
}

func evalInfrastructure(ctx *evalContext) []Violation {
	caps := ctx.scenario.Thresholds.InfrastructureCapacity
	if len(caps) == 0 {
		return nil
	}
	served := make(map[string]float64)
	for _, vt := range ctx.sortedTypes() {
		spec, err := ctx.catalog.Lookup(vt)
		if err != nil {
			continue
		}
		for p, share := range ctx.candidate.Shares[vt] {
			served[p] += share * spec.ActivityKM()
		}
	}
	pathways := make([]string, 0, len(caps))
	for p := range caps {
		pathways = append(pathways, p)
	}
	sort.Strings(pathways)
	var out []Violation
	for _, p := range pathways {
		limit := caps[p].AtYear(ctx.yearIdx)
		if got := served[p]; got > limit*(1+model.ShareTol) {
			out = append(out, Violation{
				Kind:      KindInfrastructureCapacity,
				Severity:  severityFor(got, limit),
				Scope:     "global",
				Pathway:   p,
				Year:      ctx.year,
				Observed:  got,
				Threshold: limit,
				Mitigation: fmt.Sprintf("expand %s infrastructure before %d or shift %.0f vehicle-km to other pathways",
					p, ctx.year, got-limit),
			})
		}
	}
	return out
}

func evalCostCeiling(ctx *evalContext) []Violation {
	mult := ctx.scenario.Thresholds.CostCeilingMultiple
	if mult <= 0 {
		return nil
	}
	// The ceiling is anchored to the baseline-year allocation, not to the
	// prior committed year.
	baseline := allocationCost(initialAllocation(ctx.scenario, ctx.catalog), ctx.catalog)
	if baseline <= 0 {
		return nil
	}
	cost := allocationCost(ctx.candidate, ctx.catalog)
	limit := baseline * mult
	if cost > limit*(1+model.ShareTol) {
		return []Violation{{
			Kind:      KindCostCeiling,
			Severity:  severityFor(cost, limit),
			Scope:     "global",
			Year:      ctx.year,
			Observed:  cost,
			Threshold: limit,
			Mitigation: fmt.Sprintf("reduce adoption of high-cost pathways in %d or raise the cost ceiling above %.1fx baseline",
				ctx.year, mult),
		}}
	}
	return nil
}

func evalPolicyBound(ctx *evalContext) []Violation {
	var out []Violation
	th := ctx.scenario.Thresholds
	for _, vt := range ctx.sortedTypes() {
		for p, share := range ctx.candidate.Shares[vt] {
			if min, ok := scopedThreshold(th.PolicyMinShare, vt, p); ok && share < min-model.ShareTol {
				out = append(out, Violation{
					Kind:      KindPolicyBound,
					Severity:  severityFor(min, math.Max(share, 1e-9)),
					Scope:     vt,
					Pathway:   p,
					Year:      ctx.year,
					Observed:  share,
					Threshold: min,
					Mitigation: fmt.Sprintf("raise %s share for %s to the mandated minimum %.2f",
						p, vt, min),
				})
			}
			if max, ok := scopedThreshold(th.PolicyMaxShare, vt, p); ok && share > max+model.ShareTol {
				out = append(out, Violation{
					Kind:      KindPolicyBound,
					Severity:  severityFor(share, math.Max(max, 1e-9)),
					Scope:     vt,
					Pathway:   p,
					Year:      ctx.year,
					Observed:  share,
					Threshold: max,
					Mitigation: fmt.Sprintf("phase out %s for %s down to the mandated maximum %.2f",
						p, vt, max),
				})
			}
		}
	}
	return out
}

// allocationCost returns the fleet-wide weighted cost implied by an
// allocation: share x cost factor x activity, summed over all pathways.
func allocationCost(alloc model.YearAllocation, cat *catalog.Catalog) float64 {
	var total float64
	for vt, shares := range alloc.Shares {
		spec, err := cat.Lookup(vt)
		if err != nil {
			continue
		}
		for p, share := range shares {
			if ps, ok := spec.Pathway(p); ok {
				total += share * ps.CostFactor * spec.ActivityKM()
			}
		}
	}
	return total
}

// initialAllocation reconstructs the baseline-year allocation from the
// scenario's initial shares, defaulting each missing type to 100% of its
// highest-emission pathway.
func initialAllocation(sc model.ScenarioDefinition, cat *catalog.Catalog) model.YearAllocation {
	alloc := model.YearAllocation{Year: sc.BaselineYear, Shares: make(map[string]map[string]float64, len(sc.VehicleTypes))}
	for _, vt := range sc.VehicleTypes {
		if shares, ok := sc.InitialShares[vt]; ok {
			m := make(map[string]float64, len(shares))
			for p, s := range shares {
				m[p] = s
			}
			alloc.Shares[vt] = m
			continue
		}
		spec, err := cat.Lookup(vt)
		if err != nil {
			continue
		}
		dirtiest, worst := "", -1.0
		for _, p := range spec.Pathways {
			if f := p.EmissionsFactor(sc.Basis); f > worst {
				dirtiest, worst = p.Pathway, f
			}
		}
		alloc.Shares[vt] = map[string]float64{dirtiest: 1}
	}
	return alloc
}

// InitialAllocation exposes the baseline-year allocation derivation used by
// both validation and the optimizer.
func InitialAllocation(sc model.ScenarioDefinition, cat *catalog.Catalog) model.YearAllocation {
	return initialAllocation(sc, cat)
}

// AllocationCost exposes the fleet-wide cost computation.
func AllocationCost(alloc model.YearAllocation, cat *catalog.Catalog) float64 {
	return allocationCost(alloc, cat)
}
