package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/transitionlab/fleetpath/core/metrics"
	"github.com/transitionlab/fleetpath/infra/logger"
)

// InfluxSink writes run and year records to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails. Metric faults never block a solve.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes the run summary as a point.
func (s *InfluxSink) RecordRun(r coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_run").
		AddTag("scenario_id", r.ScenarioID).
		AddTag("status", r.Status).
		AddTag("cache_hit", strconv.FormatBool(r.CacheHit)).
		AddField("run_id", r.RunID).
		AddField("duration_ms", r.Duration.Milliseconds()).
		AddField("years_committed", r.YearsCommitted).
		AddField("violations", r.Violations).
		AddField("relaxations", r.Relaxations).
		AddField("final_reduction", round3(r.FinalReduction)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordYears writes one point per committed year.
func (s *InfluxSink) RecordYears(years []coremetrics.YearResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, y := range years {
		p := write.NewPointWithMeasurement("fleet_year").
			AddTag("scenario_id", y.ScenarioID).
			AddTag("year", strconv.Itoa(y.Year)).
			AddField("run_id", y.RunID).
			AddField("emissions", round3(y.Emissions)).
			AddField("cost", round3(y.Cost)).
			AddField("reduction_pct", round3(y.ReductionPct)).
			SetTime(y.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
