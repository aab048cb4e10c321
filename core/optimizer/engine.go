// Package optimizer computes per-year pathway allocations for a fleet
// transition scenario. Years are solved sequentially: each committed year
// becomes the ramp anchor of the next, and an exhausted relaxation ladder
// stops the run with the binding constraint set.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/transitionlab/fleetpath/core/aggregate"
	"github.com/transitionlab/fleetpath/core/cache"
	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/constraint"
	"github.com/transitionlab/fleetpath/core/logger"
	"github.com/transitionlab/fleetpath/core/metrics"
	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/progress"
)

// Engine solves scenarios against a fixed catalog. Solves for distinct
// scenarios may run concurrently; results are memoized per fingerprint.
type Engine struct {
	cat   *catalog.Catalog
	rules *constraint.Manager
	cache *cache.Cache[*Result]
	sink  metrics.Sink
	log   logger.Logger
	cfg   Config
}

// NewEngine wires an engine. The cache and sink may be nil, in which case
// memoization is disabled and metrics are discarded.
func NewEngine(cat *catalog.Catalog, rules *constraint.Manager, resultCache *cache.Cache[*Result], sink metrics.Sink, log logger.Logger, cfg Config) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("optimizer: catalog is required")
	}
	if rules == nil {
		rules = constraint.NewManager()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	cfg.SetDefaults()
	return &Engine{cat: cat, rules: rules, cache: resultCache, sink: sink, log: log, cfg: cfg}, nil
}

// Solve runs the scenario to completion, or until cancellation or an
// infeasible year. Identical scenario/catalog pairs are served from the
// cache; concurrent callers with the same fingerprint share one computation.
func (e *Engine) Solve(ctx context.Context, sc model.ScenarioDefinition) (*Result, error) {
	return e.SolveMonitored(ctx, sc, nil)
}

// SolveMonitored is Solve with a progress monitor: a snapshot is published
// after every committed year and the monitor's cancel flag is honoured at
// year boundaries.
func (e *Engine) SolveMonitored(ctx context.Context, sc model.ScenarioDefinition, mon *progress.Monitor) (*Result, error) {
	sc.SetDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	for _, vt := range sc.VehicleTypes {
		if _, err := e.cat.Lookup(vt); err != nil {
			return nil, fmt.Errorf("%w: unknown vehicle type %q", model.ErrInvalidScenario, vt)
		}
	}

	fp := cache.Fingerprint(sc, e.cat.Version())
	if e.cache == nil {
		res, err := e.run(ctx, sc, fp, mon)
		return res, err
	}
	if cached, ok := e.cache.Peek(fp); ok {
		e.log.Debugf("scenario %s served from cache, fingerprint %.12s", sc.ID, fp)
		e.record(cached, true)
		return cached, nil
	}
	return e.cache.GetOrCompute(fp, func() (*Result, bool, error) {
		res, err := e.run(ctx, sc, fp, mon)
		if err != nil {
			return nil, false, err
		}
		// Partial results depend on when the run was interrupted, so only
		// deterministic outcomes are retained.
		return res, res.Status != model.StatusPartial, nil
	})
}

// run executes the sequential year loop for one scenario.
func (e *Engine) run(ctx context.Context, sc model.ScenarioDefinition, fp string, mon *progress.Monitor) (*Result, error) {
	res := &Result{
		RunID:       uuid.NewString(),
		ScenarioID:  sc.ID,
		Fingerprint: fp,
		Status:      model.StatusComplete,
		Report:      constraint.Report{Compliant: true},
		Started:     time.Now(),
	}
	e.transition(res, "", "initializing")

	baseline := constraint.InitialAllocation(sc, e.cat)
	baseE := e.allocEmissions(baseline, sc.Basis)
	baseC := constraint.AllocationCost(baseline, e.cat)
	res.BaselineEmissions = baseE

	agg := aggregate.NewEngine(sc.Basis)
	prior := baseline
	prevYear := sc.BaselineYear
	years := make([]metrics.YearResult, 0, len(sc.Years))

	e.transition(res, "initializing", "solving")
	for i, year := range sc.Years {
		if err := ctx.Err(); err != nil {
			e.log.Warnf("run %s cancelled before year %d", res.RunID, year)
			res.Status = model.StatusPartial
			break
		}
		if mon != nil && mon.Cancelled() {
			e.log.Warnf("run %s cancel requested, stopping before year %d", res.RunID, year)
			res.Status = model.StatusPartial
			break
		}

		alloc, lr, err := e.solveYear(ctx, sc, year, prevYear, prior, baseE, baseC)
		if err != nil {
			if ie, ok := asInfeasible(err); ok {
				e.transition(res, "solving", "infeasible")
				e.log.Errorf("run %s year %d infeasible, binding constraints %v", res.RunID, year, ie.Binding)
				res.Status = model.StatusInfeasible
				res.Binding = ie.Binding
				res.Relaxations = append(res.Relaxations, ie.Relaxations...)
				break
			}
			if isTimeout(err) {
				e.log.Warnf("run %s year %d exceeded its budget, returning partial result", res.RunID, year)
				res.Status = model.StatusPartial
				break
			}
			return nil, fmt.Errorf("year %d: %w", year, err)
		}

		rep := e.rules.Validate(sc, year, alloc, prior, e.cat)
		res.Report.Merge(rep)
		res.Relaxations = append(res.Relaxations, lr.relaxations...)
		for _, rx := range lr.relaxations {
			if rx.Step == model.RelaxTarget {
				res.BehindTarget = true
			}
		}
		if err := agg.Absorb(alloc, e.cat); err != nil {
			return nil, err
		}
		res.Allocations = append(res.Allocations, alloc)

		yearE := lr.problem.totalEmissions(lr.x)
		yearC := lr.problem.totalCost(lr.x)
		reduction := 0.0
		if baseE > 0 {
			reduction = 1 - yearE/baseE
		}
		res.FinalReduction = reduction
		e.log.Debugw("year committed", map[string]any{
			"run":       res.RunID,
			"year":      year,
			"emissions": yearE,
			"cost":      yearC,
			"reduction": reduction,
		})

		years = append(years, metrics.YearResult{
			RunID:        res.RunID,
			ScenarioID:   sc.ID,
			Year:         year,
			Emissions:    yearE,
			Cost:         yearC,
			ReductionPct: reduction * 100,
			Time:         time.Now(),
		})
		if mon != nil {
			total := agg.Snapshot().Total()
			mon.Update(progress.Snapshot{
				RunID:          res.RunID,
				ScenarioID:     sc.ID,
				Year:           year,
				Fraction:       float64(i+1) / float64(len(sc.Years)),
				TotalEmissions: total.Emissions,
				TotalCost:      total.Cost,
				ReductionPct:   reduction * 100,
				Violations:     len(res.Report.Violations),
				Status:         res.Status.String(),
				Time:           time.Now(),
			})
		}

		prior = alloc
		prevYear = year
	}

	if res.Status == model.StatusComplete {
		e.transition(res, "solving", "complete")
	}
	res.Tree = agg.Snapshot()
	res.Finished = time.Now()
	e.record(res, false)
	if len(years) > 0 {
		if yr, ok := e.sink.(metrics.YearRecorder); ok {
			if err := yr.RecordYears(years); err != nil {
				e.log.Warnf("recording year metrics: %v", err)
			}
		}
	}
	return res, nil
}

// solveYear runs the relaxation ladder for one year under the scenario's (or
// the engine's default) wall-clock budget. The budget is cooperative: an
// attempt already running is not interrupted, but its result is discarded.
func (e *Engine) solveYear(ctx context.Context, sc model.ScenarioDefinition, year, prevYear int, prior model.YearAllocation, baseE, baseC float64) (model.YearAllocation, *ladderResult, error) {
	if len(sc.VehicleTypes) == 0 {
		p, err := buildProblem(sc, e.cat, year, prevYear, prior, sc.MaxAnnualChange, allBounds(), baseE, baseC)
		if err != nil {
			return model.YearAllocation{}, nil, err
		}
		lr := &ladderResult{x: nil, problem: p}
		return p.toAllocation(nil), lr, nil
	}

	budget := sc.YearBudget
	if budget <= 0 {
		budget = e.cfg.YearBudget()
	}
	solve := e.solverFor(len(sc.VehicleTypes))

	type outcome struct {
		lr  *ladderResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		lr, err := e.solveWithLadder(sc, e.cat, year, prevYear, prior, baseE, baseC, solve)
		ch <- outcome{lr: lr, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case out := <-ch:
		if out.err != nil {
			return model.YearAllocation{}, nil, out.err
		}
		return out.lr.problem.toAllocation(out.lr.x), out.lr, nil
	case <-timer.C:
		return model.YearAllocation{}, nil, fmt.Errorf("%w: year %d budget %s exhausted", model.ErrTimeout, year, budget)
	case <-ctx.Done():
		return model.YearAllocation{}, nil, fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
	}
}

// solverFor picks the joint LP for small fleets and the proportional
// waterfill pass above the configured type-count threshold.
func (e *Engine) solverFor(typeCount int) yearSolver {
	if typeCount > e.cfg.WaterfillThreshold {
		return func(p *yearProblem) ([]float64, error) {
			return solveYearWaterfill(p, e.cfg.WaterfillMaxRounds, e.cfg.Parallelism)
		}
	}
	return solveYearLP
}

// allocEmissions returns the fleet-wide emissions implied by an allocation.
func (e *Engine) allocEmissions(alloc model.YearAllocation, basis model.EmissionsBasis) float64 {
	var total float64
	for vt, shares := range alloc.Shares {
		spec, err := e.cat.Lookup(vt)
		if err != nil {
			continue
		}
		for p, share := range shares {
			if ps, ok := spec.Pathway(p); ok {
				total += share * ps.EmissionsFactor(basis) * spec.ActivityKM()
			}
		}
	}
	return total
}

// transition logs a run state change.
func (e *Engine) transition(res *Result, from, to string) {
	e.log.Debugw("run state", map[string]any{"run": res.RunID, "from": from, "to": to})
}

// record emits the run summary to the metric sink.
func (e *Engine) record(res *Result, cacheHit bool) {
	err := e.sink.RecordRun(metrics.RunResult{
		RunID:          res.RunID,
		ScenarioID:     res.ScenarioID,
		Status:         res.Status.String(),
		Duration:       res.Finished.Sub(res.Started),
		YearsCommitted: len(res.Allocations),
		Violations:     len(res.Report.Violations),
		Relaxations:    len(res.Relaxations),
		FinalReduction: res.FinalReduction,
		CacheHit:       cacheHit,
		Time:           time.Now(),
	})
	if err != nil {
		e.log.Warnf("recording run metrics: %v", err)
	}
}

func asInfeasible(err error) (*InfeasibleError, bool) {
	var ie *InfeasibleError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

func isTimeout(err error) bool {
	return errors.Is(err, model.ErrTimeout)
}
