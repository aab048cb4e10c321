package optimizer

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/transitionlab/fleetpath/core/model"
)

// solveYearWaterfill solves one year without a joint LP. Each vehicle type
// first takes its locally cheapest allocation within bounds; the shared
// target-trajectory constraint is then enforced by redistributing the
// required reduction across types in proportional rounds, weighted by how
// much reduction each type can still deliver.
func solveYearWaterfill(p *yearProblem, maxRounds, parallelism int) ([]float64, error) {
	if err := p.boundsFeasible(); err != nil {
		return nil, err
	}
	x := make([]float64, p.n())

	blocks := sortedBlocks(p)
	var eg errgroup.Group
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for _, blk := range blocks {
		blk := blk
		eg.Go(func() error {
			return fillBlock(p, x, blk, byObjective)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if !p.applyTarget {
		return x, nil
	}
	needed := p.totalEmissions(x) - p.targetLimit
	if needed <= shareEps(p) {
		return x, nil
	}

	for round := 0; round < maxRounds && needed > shareEps(p); round++ {
		weights := make([]float64, len(blocks))
		var weightSum float64
		for bi, blk := range blocks {
			weights[bi] = blockHeadroom(p, x, blk)
			weightSum += weights[bi]
		}
		if weightSum <= 0 {
			break
		}
		var consumed float64
		for bi, blk := range blocks {
			if weights[bi] <= 0 {
				continue
			}
			want := needed * weights[bi] / weightSum
			got := shiftCleaner(p, x, blk, want)
			consumed += got
		}
		if consumed <= shareEps(p) {
			break
		}
		needed -= consumed
	}
	if needed > shareEps(p) {
		return nil, fmt.Errorf("%w: target short by %.4g after redistribution", ErrInfeasible, needed)
	}
	return x, nil
}

// shareEps scales the numeric tolerance to the problem's emission magnitude.
func shareEps(p *yearProblem) float64 {
	max := 1.0
	for _, c := range p.emisCoef {
		if c > max {
			max = c
		}
	}
	return model.ShareTol * max
}

type rankFunc func(p *yearProblem, i int) float64

func byObjective(p *yearProblem, i int) float64 { return p.obj[i] }
func byEmissions(p *yearProblem, i int) float64 { return p.emisCoef[i] }

// fillBlock assigns the block's shares greedily: lower bounds first, then
// the remainder to the cheapest pathways by rank. Exact for a linear
// objective over a unit simplex with box bounds.
func fillBlock(p *yearProblem, x []float64, blk [2]int, rank rankFunc) error {
	remaining := 1.0
	for i := blk[0]; i < blk[1]; i++ {
		x[i] = p.lb[i]
		remaining -= p.lb[i]
	}
	if remaining < -model.ShareTol {
		return fmt.Errorf("%w: lower bounds exceed unit share", errBoundsConflict)
	}
	order := make([]int, 0, blk[1]-blk[0])
	for i := blk[0]; i < blk[1]; i++ {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return rank(p, order[a]) < rank(p, order[b]) })
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		room := p.ub[i] - x[i]
		if room <= 0 {
			continue
		}
		take := room
		if take > remaining {
			take = remaining
		}
		x[i] += take
		remaining -= take
	}
	if remaining > model.ShareTol {
		return fmt.Errorf("%w: upper bounds below unit share", errBoundsConflict)
	}
	return nil
}

// blockHeadroom returns the emissions reduction a type can still deliver by
// moving share from dirtier to cleaner pathways within its bounds.
func blockHeadroom(p *yearProblem, x []float64, blk [2]int) float64 {
	current := 0.0
	for i := blk[0]; i < blk[1]; i++ {
		current += p.emisCoef[i] * x[i]
	}
	min := make([]float64, p.n())
	if err := fillBlock(p, min, blk, byEmissions); err != nil {
		return 0
	}
	floor := 0.0
	for i := blk[0]; i < blk[1]; i++ {
		floor += p.emisCoef[i] * min[i]
	}
	if h := current - floor; h > 0 {
		return h
	}
	return 0
}

// shiftCleaner moves share from the block's dirtiest pathways to its
// cleanest until the emissions reduction reaches want or the bounds bind.
// Returns the reduction achieved.
func shiftCleaner(p *yearProblem, x []float64, blk [2]int, want float64) float64 {
	idx := make([]int, 0, blk[1]-blk[0])
	for i := blk[0]; i < blk[1]; i++ {
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool { return p.emisCoef[idx[a]] < p.emisCoef[idx[b]] })

	achieved := 0.0
	lo, hi := 0, len(idx)-1
	for lo < hi && achieved < want {
		clean, dirty := idx[lo], idx[hi]
		gain := p.emisCoef[dirty] - p.emisCoef[clean]
		if gain <= 0 {
			break
		}
		give := x[dirty] - p.lb[dirty]
		take := p.ub[clean] - x[clean]
		move := give
		if take < move {
			move = take
		}
		if maxMove := (want - achieved) / gain; maxMove < move {
			move = maxMove
		}
		if move > 0 {
			x[dirty] -= move
			x[clean] += move
			achieved += move * gain
		}
		if x[dirty]-p.lb[dirty] <= model.ShareTol {
			hi--
		}
		if p.ub[clean]-x[clean] <= model.ShareTol {
			lo++
		}
		if move <= 0 {
			// Neither side can move further on this pair.
			if give <= take {
				hi--
			} else {
				lo++
			}
		}
	}
	return achieved
}
