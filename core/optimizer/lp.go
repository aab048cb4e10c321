package optimizer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrInfeasible indicates no allocation satisfies the active constraints.
var ErrInfeasible = errors.New("allocation infeasible")

var errBoundsConflict = errors.New("share bounds conflict")

// lpTol is the simplex tolerance.
const lpTol = 1e-7

// lpSolve points to the function used to solve the LP. It can be overridden
// in tests to simulate solver failures.
var lpSolve = runSimplex

// runSimplex converts the general-form problem (minimize cᵀx subject to
// Gx <= h, Ax = b) to standard form and runs the simplex method. The
// returned vector is the recovered free-variable solution of length len(c).
func runSimplex(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) ([]float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, lpTol, nil)
	if err != nil {
		return nil, err
	}
	n := len(c)
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}

// solveYearLP solves the joint allocation LP for one year and applies the
// churn-minimizing tie-break so degenerate optima resolve reproducibly.
func solveYearLP(p *yearProblem) ([]float64, error) {
	if err := p.boundsFeasible(); err != nil {
		return nil, err
	}
	n := p.n()

	rows := 2 * n
	if p.applyTarget {
		rows++
	}
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for i := 0; i < n; i++ {
		g.Set(2*i, i, 1)
		h[2*i] = p.ub[i]
		g.Set(2*i+1, i, -1)
		h[2*i+1] = -p.lb[i]
	}
	if p.applyTarget {
		for i := 0; i < n; i++ {
			g.Set(2*n, i, p.emisCoef[i])
		}
		h[2*n] = p.targetLimit
	}

	types := len(p.typeBlocks)
	a := mat.NewDense(types, n, nil)
	b := make([]float64, types)
	row := 0
	for _, blk := range sortedBlocks(p) {
		for i := blk[0]; i < blk[1]; i++ {
			a.Set(row, i, 1)
		}
		b[row] = 1
		row++
	}

	x, err := lpSolve(p.obj, g, h, a, b)
	if err != nil {
		return nil, errInfeasibleFrom(err)
	}
	clampToBounds(x, p.lb, p.ub)

	if refined, err := minimizeChurn(p, x); err == nil {
		x = refined
	}
	return x, nil
}

// minimizeChurn solves the secondary LP: among allocations whose primary
// objective matches the optimum, pick the one with the least total share
// movement relative to the prior year.
func minimizeChurn(p *yearProblem, best []float64) ([]float64, error) {
	n := p.n()
	fStar := 0.0
	for i := range best {
		fStar += p.obj[i] * best[i]
	}
	eps := 1e-9 * (1 + math.Abs(fStar))

	// Variables: x (n) followed by churn slack y (n) with y_i >= |x_i - prior_i|.
	m := 2 * n
	rows := 2*n + n + 2*n + 1
	if p.applyTarget {
		rows++
	}
	g := mat.NewDense(rows, m, nil)
	h := make([]float64, rows)
	r := 0
	for i := 0; i < n; i++ {
		g.Set(r, i, 1)
		h[r] = p.ub[i]
		r++
		g.Set(r, i, -1)
		h[r] = -p.lb[i]
		r++
	}
	for i := 0; i < n; i++ {
		g.Set(r, n+i, -1)
		h[r] = 0
		r++
	}
	for i := 0; i < n; i++ {
		g.Set(r, i, 1)
		g.Set(r, n+i, -1)
		h[r] = p.prior[i]
		r++
		g.Set(r, i, -1)
		g.Set(r, n+i, -1)
		h[r] = -p.prior[i]
		r++
	}
	for i := 0; i < n; i++ {
		g.Set(r, i, p.obj[i])
	}
	h[r] = fStar + eps
	r++
	if p.applyTarget {
		for i := 0; i < n; i++ {
			g.Set(r, i, p.emisCoef[i])
		}
		h[r] = p.targetLimit
	}

	types := len(p.typeBlocks)
	a := mat.NewDense(types, m, nil)
	b := make([]float64, types)
	row := 0
	for _, blk := range sortedBlocks(p) {
		for i := blk[0]; i < blk[1]; i++ {
			a.Set(row, i, 1)
		}
		b[row] = 1
		row++
	}

	c := make([]float64, m)
	for i := n; i < m; i++ {
		c[i] = 1
	}
	sol, err := lpSolve(c, g, h, a, b)
	if err != nil {
		return nil, err
	}
	x := sol[:n]
	clampToBounds(x, p.lb, p.ub)
	return x, nil
}

// sortedBlocks returns the type blocks ordered by their variable offsets so
// constraint rows are assembled deterministically.
func sortedBlocks(p *yearProblem) [][2]int {
	blocks := make([][2]int, 0, len(p.typeBlocks))
	for _, blk := range p.typeBlocks {
		blocks = append(blocks, blk)
	}
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j][0] < blocks[j-1][0]; j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}
	return blocks
}

func clampToBounds(x, lb, ub []float64) {
	for i := range x {
		if x[i] < lb[i] {
			x[i] = lb[i]
		}
		if x[i] > ub[i] {
			x[i] = ub[i]
		}
	}
}

// errInfeasibleFrom maps simplex infeasibility and unboundedness onto
// ErrInfeasible. Other solver faults pass through unchanged so they surface
// as errors rather than trigger the relaxation ladder.
func errInfeasibleFrom(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded) {
		return errors.Join(ErrInfeasible, err)
	}
	return err
}
