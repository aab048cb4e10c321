// Package progress exposes read-only snapshots of a running scenario solve
// and cooperative cancellation checked between year steps.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/transitionlab/fleetpath/internal/eventbus"
)

// Snapshot is an immutable view of run progress published after each
// committed year.
type Snapshot struct {
	RunID          string    `json:"run_id"`
	ScenarioID     string    `json:"scenario_id"`
	Year           int       `json:"year"`
	Fraction       float64   `json:"fraction"`
	TotalEmissions float64   `json:"total_emissions"`
	TotalCost      float64   `json:"total_cost"`
	ReductionPct   float64   `json:"reduction_pct"`
	Violations     int       `json:"violations"`
	Status         string    `json:"status"`
	Time           time.Time `json:"time"`
}

// Monitor tracks the latest snapshot for one run and republishes updates on
// the shared bus. The cancel flag is only honoured at year boundaries, never
// mid-solve.
type Monitor struct {
	mu        sync.RWMutex
	latest    Snapshot
	cancelled atomic.Bool
	bus       *eventbus.Bus[Snapshot]
}

// NewMonitor returns a monitor publishing to bus. A nil bus is allowed.
func NewMonitor(bus *eventbus.Bus[Snapshot]) *Monitor {
	return &Monitor{bus: bus}
}

// Update records the snapshot and publishes it.
func (m *Monitor) Update(s Snapshot) {
	m.mu.Lock()
	m.latest = s
	m.mu.Unlock()
	if m.bus != nil {
		m.bus.Publish(s)
	}
}

// Snapshot returns the latest published snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Cancel requests cooperative cancellation. The running solve finishes its
// current year and returns a partial result.
func (m *Monitor) Cancel() { m.cancelled.Store(true) }

// Cancelled reports whether cancellation was requested.
func (m *Monitor) Cancelled() bool { return m.cancelled.Load() }
