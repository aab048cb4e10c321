package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func twoPathwayProblem() *yearProblem {
	return &yearProblem{
		year: 2026,
		refs: []varRef{
			{vehicleType: "bus", pathway: "diesel"},
			{vehicleType: "bus", pathway: "electric"},
		},
		typeBlocks: map[string][2]int{"bus": {0, 2}},
	}
}

func TestToAllocationRenormalizesWithinTolerance(t *testing.T) {
	p := twoPathwayProblem()

	alloc := p.toAllocation([]float64{0.7, 0.3 + 4e-7})
	assert.True(t, alloc.CheckSums())
	sum := alloc.Share("bus", "diesel") + alloc.Share("bus", "electric")
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 0.7, alloc.Share("bus", "diesel"), 1e-6)
}

func TestToAllocationSnapsTinyNegatives(t *testing.T) {
	p := twoPathwayProblem()

	alloc := p.toAllocation([]float64{1 + 5e-7, -5e-7})
	assert.Zero(t, alloc.Share("bus", "electric"))
	assert.True(t, alloc.CheckSums())
}

func TestToAllocationLeavesLargeResiduesVisible(t *testing.T) {
	p := twoPathwayProblem()

	alloc := p.toAllocation([]float64{0.7, 0.301})
	assert.InDelta(t, 0.301, alloc.Share("bus", "electric"), 1e-12)
	assert.False(t, alloc.CheckSums(), "an out-of-tolerance sum must stay detectable")
}
