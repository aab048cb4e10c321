// Package aggregate rolls per-vehicle-type-year metrics up to category, year
// and scenario totals. Rollups are plain sums, so absorbing vehicle types in
// any order yields identical totals.
package aggregate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/model"
)

// Level tags an aggregation node.
type Level int

const (
	LevelVehicleType Level = iota
	LevelCategory
	LevelYear
	LevelTotal
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelVehicleType:
		return "vehicle_type"
	case LevelCategory:
		return "category"
	case LevelYear:
		return "year"
	case LevelTotal:
		return "total"
	default:
		return "unknown"
	}
}

// Node holds running sums for one aggregation key. Intensity is derived on
// read from the sums, never stored.
type Node struct {
	Level      Level   `json:"level"`
	Key        string  `json:"key"`
	Year       int     `json:"year,omitempty"`
	Emissions  float64 `json:"emissions"`
	Cost       float64 `json:"cost"`
	DistanceKM float64 `json:"distance_km"`
}

// Intensity returns emissions per km, or zero when no distance was served.
func (n Node) Intensity() float64 {
	if n.DistanceKM == 0 {
		return 0
	}
	return n.Emissions / n.DistanceKM
}

// Tree is a consistent snapshot of all aggregation nodes, sorted by level,
// key and year.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Find returns the node with the given level, key and year.
func (t Tree) Find(level Level, key string, year int) (Node, bool) {
	for _, n := range t.Nodes {
		if n.Level == level && n.Key == key && n.Year == year {
			return n, true
		}
	}
	return Node{}, false
}

// Total returns the scenario-total node.
func (t Tree) Total() Node {
	n, _ := t.Find(LevelTotal, "total", 0)
	return n
}

// YearTotal returns the year-level node for the given year.
func (t Tree) YearTotal(year int) (Node, bool) {
	return t.Find(LevelYear, fmt.Sprintf("%d", year), year)
}

// Engine accumulates allocations into the node tree. Absorb is not safe for
// concurrent use on the same engine; snapshots may be read concurrently with
// further absorbs guarded by the internal lock.
type Engine struct {
	mu    sync.RWMutex
	basis model.EmissionsBasis
	nodes map[nodeKey]*Node
}

type nodeKey struct {
	level Level
	key   string
	year  int
}

// NewEngine returns an engine computing emissions on the given basis.
func NewEngine(basis model.EmissionsBasis) *Engine {
	return &Engine{basis: basis, nodes: make(map[nodeKey]*Node)}
}

// Absorb folds one year allocation into the running sums. Per-type-year
// emissions are share x factor x distance x fleet; cost uses the cost factor
// analogously.
func (e *Engine) Absorb(alloc model.YearAllocation, cat *catalog.Catalog) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for vt, shares := range alloc.Shares {
		spec, err := cat.Lookup(vt)
		if err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		var emissions, cost float64
		activity := spec.ActivityKM()
		for p, share := range shares {
			ps, ok := spec.Pathway(p)
			if !ok {
				return fmt.Errorf("aggregate: vehicle type %s has no pathway %s", vt, p)
			}
			emissions += share * ps.EmissionsFactor(e.basis) * activity
			cost += share * ps.CostFactor * activity
		}
		e.add(nodeKey{LevelVehicleType, vt, alloc.Year}, emissions, cost, activity)
		e.add(nodeKey{LevelCategory, spec.Category, alloc.Year}, emissions, cost, activity)
		e.add(nodeKey{LevelYear, fmt.Sprintf("%d", alloc.Year), alloc.Year}, emissions, cost, activity)
		e.add(nodeKey{LevelTotal, "total", 0}, emissions, cost, activity)
	}
	return nil
}

func (e *Engine) add(k nodeKey, emissions, cost, distance float64) {
	n, ok := e.nodes[k]
	if !ok {
		n = &Node{Level: k.level, Key: k.key, Year: k.year}
		e.nodes[k] = n
	}
	n.Emissions += emissions
	n.Cost += cost
	n.DistanceKM += distance
}

// Snapshot returns a consistent copy of the node tree. Safe to call while a
// run is still absorbing subsequent years.
func (e *Engine) Snapshot() Tree {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t := Tree{Nodes: make([]Node, 0, len(e.nodes))}
	for _, n := range e.nodes {
		t.Nodes = append(t.Nodes, *n)
	}
	sort.Slice(t.Nodes, func(i, j int) bool {
		a, b := t.Nodes[i], t.Nodes[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Year < b.Year
	})
	return t
}
