package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/transitionlab/fleetpath/core/metrics"
)

// PromSink records scenario runs in Prometheus metrics.
type PromSink struct {
	runs           *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	finalReduction *prometheus.GaugeVec
	violations     *prometheus.CounterVec
	yearEmissions  *prometheus.GaugeVec
	yearCost       *prometheus.GaugeVec
}

// NewPromSink registers run metrics on the provided Prometheus registerer.
// If reg is nil, the default registerer is used. If the collectors are
// already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetpath_runs_total",
		Help: "Total number of finished scenario runs",
	}, []string{"scenario_id", "status", "cache_hit"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetpath_run_duration_seconds",
		Help:    "Wall-clock duration of scenario runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"scenario_id", "status"})
	finalReduction := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetpath_final_reduction_ratio",
		Help: "Cumulative emissions reduction achieved in the last committed year",
	}, []string{"scenario_id"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetpath_constraint_violations_total",
		Help: "Constraint violations accumulated over finished runs",
	}, []string{"scenario_id"})
	yearEmissions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetpath_year_emissions_kg",
		Help: "Fleet emissions of the last committed allocation per year",
	}, []string{"scenario_id", "year"})
	yearCost := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetpath_year_cost",
		Help: "Fleet-wide weighted cost of the last committed allocation per year",
	}, []string{"scenario_id", "year"})

	s := &PromSink{
		runs:           runs,
		duration:       duration,
		finalReduction: finalReduction,
		violations:     violations,
		yearEmissions:  yearEmissions,
		yearCost:       yearCost,
	}
	collectors := []prometheus.Collector{runs, duration, finalReduction, violations, yearEmissions, yearCost}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				s.runs = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				s.duration = are.ExistingCollector.(*prometheus.HistogramVec)
			case 2:
				s.finalReduction = are.ExistingCollector.(*prometheus.GaugeVec)
			case 3:
				s.violations = are.ExistingCollector.(*prometheus.CounterVec)
			case 4:
				s.yearEmissions = are.ExistingCollector.(*prometheus.GaugeVec)
			case 5:
				s.yearCost = are.ExistingCollector.(*prometheus.GaugeVec)
			}
		}
	}
	return s, nil
}

// RecordRun increments the run counters and observes the duration.
func (s *PromSink) RecordRun(r coremetrics.RunResult) error {
	s.runs.WithLabelValues(r.ScenarioID, r.Status, strconv.FormatBool(r.CacheHit)).Inc()
	s.duration.WithLabelValues(r.ScenarioID, r.Status).Observe(r.Duration.Seconds())
	s.finalReduction.WithLabelValues(r.ScenarioID).Set(r.FinalReduction)
	if r.Violations > 0 {
		s.violations.WithLabelValues(r.ScenarioID).Add(float64(r.Violations))
	}
	return nil
}

// RecordYears sets the per-year gauges for the run.
func (s *PromSink) RecordYears(years []coremetrics.YearResult) error {
	for _, y := range years {
		label := strconv.Itoa(y.Year)
		s.yearEmissions.WithLabelValues(y.ScenarioID, label).Set(y.Emissions)
		s.yearCost.WithLabelValues(y.ScenarioID, label).Set(y.Cost)
	}
	return nil
}
