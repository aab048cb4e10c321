package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/transitionlab/fleetpath/core/metrics"
)

func TestPromSinkRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.RecordRun(coremetrics.RunResult{
		RunID:          "run-1",
		ScenarioID:     "sc-1",
		Status:         "complete",
		Duration:       120 * time.Millisecond,
		YearsCommitted: 10,
		FinalReduction: 0.42,
		Time:           time.Now(),
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP fleetpath_runs_total Total number of finished scenario runs
# TYPE fleetpath_runs_total counter
fleetpath_runs_total{cache_hit="false",scenario_id="sc-1",status="complete"} 1
`
	if err := testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if err := sink.RecordYears([]coremetrics.YearResult{
		{ScenarioID: "sc-1", Year: 2030, Emissions: 1200, Cost: 900},
	}); err != nil {
		t.Fatalf("year record error: %v", err)
	}
	if c := testutil.CollectAndCount(sink.yearEmissions); c == 0 {
		t.Errorf("year emissions not recorded")
	}
}

func TestNewPromSinkReregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	// Registering on the same registry must reuse the existing collectors.
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("second registration: %v", err)
	}
}
