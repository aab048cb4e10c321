package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/constraint"
	"github.com/transitionlab/fleetpath/core/model"
)

// varRef identifies one decision variable: the share of a vehicle type
// assigned to a pathway.
type varRef struct {
	vehicleType string
	pathway     string
	spec        model.PathwaySpec
	activityKM  float64
}

// boundMask selects which constraint families enter the share bounds. Used
// by the relaxation ladder and the binding-set diagnosis.
type boundMask struct {
	ramp      bool
	readiness bool
	market    bool
	policy    bool
	target    bool
}

func allBounds() boundMask {
	return boundMask{ramp: true, readiness: true, market: true, policy: true, target: true}
}

// yearProblem is the assembled allocation problem for one year.
type yearProblem struct {
	year    int
	yearIdx int
	// rampYears is the calendar gap to the previous committed year; the
	// permitted share delta is ramp x rampYears.
	rampYears int

	refs       []varRef
	typeBlocks map[string][2]int // vehicle type -> [start, end) into refs

	prior    []float64
	lb, ub   []float64
	emisCoef []float64 // emissions per unit share
	costCoef []float64
	obj      []float64

	applyTarget bool
	targetLimit float64 // permitted emissions this year
}

// n returns the number of decision variables.
func (p *yearProblem) n() int { return len(p.refs) }

// totalEmissions evaluates the emissions implied by a share vector.
func (p *yearProblem) totalEmissions(x []float64) float64 {
	var e float64
	for i, c := range p.emisCoef {
		e += c * x[i]
	}
	return e
}

// totalCost evaluates the cost implied by a share vector.
func (p *yearProblem) totalCost(x []float64) float64 {
	var c float64
	for i, cc := range p.costCoef {
		c += cc * x[i]
	}
	return c
}

// buildProblem assembles the year problem. prior is the committed allocation
// of the preceding year, ramp the effective maximum annual change, and mask
// selects which constraint families are enforced as bounds.
func buildProblem(sc model.ScenarioDefinition, cat *catalog.Catalog, year, prevYear int, prior model.YearAllocation, ramp float64, mask boundMask, baseE, baseC float64) (*yearProblem, error) {
	p := &yearProblem{
		year:        year,
		yearIdx:     year - sc.Years[0],
		rampYears:   year - prevYear,
		typeBlocks:  make(map[string][2]int, len(sc.VehicleTypes)),
		applyTarget: mask.target,
	}
	if p.rampYears < 1 {
		p.rampYears = 1
	}

	types := append([]string(nil), sc.VehicleTypes...)
	sort.Strings(types)
	for _, vt := range types {
		spec, err := cat.Lookup(vt)
		if err != nil {
			return nil, err
		}
		start := len(p.refs)
		for _, ps := range spec.Pathways {
			p.refs = append(p.refs, varRef{vehicleType: vt, pathway: ps.Pathway, spec: ps, activityKM: spec.ActivityKM()})
		}
		p.typeBlocks[vt] = [2]int{start, len(p.refs)}
	}

	n := p.n()
	p.prior = make([]float64, n)
	p.lb = make([]float64, n)
	p.ub = make([]float64, n)
	p.emisCoef = make([]float64, n)
	p.costCoef = make([]float64, n)
	p.obj = make([]float64, n)

	maxDelta := ramp * float64(p.rampYears)
	th := sc.Thresholds
	for i, r := range p.refs {
		pr := prior.Share(r.vehicleType, r.pathway)
		p.prior[i] = pr
		p.emisCoef[i] = r.spec.EmissionsFactor(sc.Basis) * r.activityKM
		p.costCoef[i] = r.spec.CostFactor * r.activityKM

		lo, hi := 0.0, 1.0
		if mask.ramp {
			lo = math.Max(lo, pr-maxDelta)
			hi = math.Min(hi, pr+maxDelta)
		}
		if mask.readiness {
			hi = math.Min(hi, constraint.ReadinessCeiling(r.spec.ReadinessLevel, p.yearIdx, th.ReadinessRampPerYear))
		}
		if mask.market {
			if cap, ok := lookupScoped(th.MarketPenetrationMax, r.vehicleType, r.pathway); ok {
				hi = math.Min(hi, cap)
			}
		}
		if mask.policy {
			if min, ok := lookupScoped(th.PolicyMinShare, r.vehicleType, r.pathway); ok {
				lo = math.Max(lo, min)
			}
			if max, ok := lookupScoped(th.PolicyMaxShare, r.vehicleType, r.pathway); ok {
				hi = math.Min(hi, max)
			}
		}
		p.lb[i] = lo
		p.ub[i] = hi
	}

	// Normalize the objective so the emissions/cost weights compare like
	// quantities regardless of fleet scale.
	eScale, cScale := baseE, baseC
	if eScale <= 0 {
		eScale = 1
	}
	if cScale <= 0 {
		cScale = 1
	}
	for i := range p.obj {
		p.obj[i] = sc.Weights.Emissions*p.emisCoef[i]/eScale + sc.Weights.Cost*p.costCoef[i]/cScale
	}

	if mask.target {
		p.targetLimit = baseE * (1 - sc.RequiredReduction(year))
	}
	return p, nil
}

// lookupScoped mirrors the constraint manager's threshold resolution:
// "type/pathway" entries take precedence over bare pathway entries.
func lookupScoped(m map[string]float64, vehicleType, pathway string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	if v, ok := m[vehicleType+"/"+pathway]; ok {
		return v, true
	}
	v, ok := m[pathway]
	return v, ok
}

// boundsFeasible checks that every vehicle type can still sum its shares to
// one within the computed bounds.
func (p *yearProblem) boundsFeasible() error {
	for vt, blk := range p.typeBlocks {
		var loSum, hiSum float64
		for i := blk[0]; i < blk[1]; i++ {
			loSum += p.lb[i]
			hiSum += p.ub[i]
		}
		if loSum > 1+model.ShareTol {
			return fmt.Errorf("%w: lower bounds for %s sum to %.4f", errBoundsConflict, vt, loSum)
		}
		if hiSum < 1-model.ShareTol {
			return fmt.Errorf("%w: upper bounds for %s sum to %.4f", errBoundsConflict, vt, hiSum)
		}
	}
	return nil
}

// toAllocation converts a share vector into a YearAllocation, snapping tiny
// numerical residues and renormalizing each type to an exact unit sum.
// Residues beyond the share tolerance are left visible so a solver fault
// fails the sum invariant instead of being papered over.
func (p *yearProblem) toAllocation(x []float64) model.YearAllocation {
	alloc := model.YearAllocation{Year: p.year, Shares: make(map[string]map[string]float64, len(p.typeBlocks))}
	for vt, blk := range p.typeBlocks {
		m := make(map[string]float64, blk[1]-blk[0])
		var sum float64
		for i := blk[0]; i < blk[1]; i++ {
			v := x[i]
			if v < 0 && v > -model.ShareTol {
				v = 0
			}
			m[p.refs[i].pathway] = v
			sum += v
		}
		if sum > 0 && math.Abs(sum-1) <= model.ShareTol {
			for k := range m {
				m[k] /= sum
			}
		}
		alloc.Shares[vt] = m
	}
	return alloc
}
