// Package metrics defines the recording interfaces implemented by the
// Prometheus and InfluxDB sinks.
package metrics

import "time"

// RunResult summarizes one finished scenario solve.
type RunResult struct {
	RunID          string
	ScenarioID     string
	Status         string
	Duration       time.Duration
	YearsCommitted int
	Violations     int
	Relaxations    int
	FinalReduction float64
	CacheHit       bool
	Time           time.Time
}

// YearResult is one committed year's totals, emitted while a run streams.
type YearResult struct {
	RunID        string
	ScenarioID   string
	Year         int
	Emissions    float64
	Cost         float64
	ReductionPct float64
	Time         time.Time
}

// Sink records finished runs for observability purposes.
type Sink interface {
	RecordRun(RunResult) error
}

// YearRecorder is implemented by sinks able to record per-year results.
type YearRecorder interface {
	RecordYears([]YearResult) error
}

// NopSink implements Sink and YearRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunResult) error      { return nil }
func (NopSink) RecordYears([]YearResult) error { return nil }

// Config selects and configures the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
