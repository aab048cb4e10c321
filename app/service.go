// Package app wires the catalog, optimizer, persistence and transports into
// a runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/transitionlab/fleetpath/api/scenarios"
	"github.com/transitionlab/fleetpath/config"
	"github.com/transitionlab/fleetpath/core/cache"
	"github.com/transitionlab/fleetpath/core/catalog"
	"github.com/transitionlab/fleetpath/core/constraint"
	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/core/optimizer"
	"github.com/transitionlab/fleetpath/core/progress"
	"github.com/transitionlab/fleetpath/infra/logger"
	"github.com/transitionlab/fleetpath/infra/metrics"
	"github.com/transitionlab/fleetpath/infra/mqtt"
	"github.com/transitionlab/fleetpath/infra/store"
	"github.com/transitionlab/fleetpath/internal/eventbus"
)

// Service orchestrates the allocation engine and its collaborators.
type Service struct {
	Engine  *optimizer.Engine
	Catalog *catalog.Catalog
	Store   *store.SQLiteStore

	bus      *eventbus.Bus[progress.Snapshot]
	pub      *mqtt.ProgressPublisher
	log      logger.Logger
	cfg      *config.Config
	monitors sync.Map // scenario id -> *progress.Monitor
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logg.Infof("catalog loaded: %d vehicle types, version %.12s", cat.Len(), cat.Version())

	resultCache, err := cache.New[*optimizer.Result](cfg.Cache.Size)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	sink, err := metrics.NewSinks(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metric sinks: %w", err)
	}
	engine, err := optimizer.NewEngine(cat, constraint.NewManager(), resultCache, sink, logger.New("optimizer"), cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc := &Service{
		Engine:  engine,
		Catalog: cat,
		Store:   st,
		bus:     eventbus.New[progress.Snapshot](),
		log:     logg,
		cfg:     cfg,
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewProgressPublisher(cfg.MQTT, svc.bus)
		if err != nil {
			// Progress streaming is best effort: a broker outage must not
			// prevent solves from running.
			logg.Errorf("mqtt publisher: %v", err)
		} else {
			svc.pub = pub
		}
	}
	return svc, nil
}

// Solve runs the scenario with progress streaming and persists the result.
// The monitor stays registered after the run so progress remains pollable.
func (s *Service) Solve(ctx context.Context, sc model.ScenarioDefinition) (*optimizer.Result, error) {
	mon := progress.NewMonitor(s.bus)
	s.monitors.Store(sc.ID, mon)
	res, err := s.Engine.SolveMonitored(ctx, sc, mon)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SaveResult(res); err != nil {
		s.log.Warnf("persist result %s: %v", res.RunID, err)
	}
	return res, nil
}

// Progress returns the latest snapshot for the scenario's most recent run.
func (s *Service) Progress(scenarioID string) (progress.Snapshot, bool) {
	v, ok := s.monitors.Load(scenarioID)
	if !ok {
		return progress.Snapshot{}, false
	}
	return v.(*progress.Monitor).Snapshot(), true
}

// Cancel requests cooperative cancellation of the scenario's running solve.
// The run finishes its current year and returns a partial result.
func (s *Service) Cancel(scenarioID string) bool {
	v, ok := s.monitors.Load(scenarioID)
	if !ok {
		return false
	}
	v.(*progress.Monitor).Cancel()
	return true
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.pub != nil {
		go s.pub.Run(ctx)
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           scenarios.NewHandler(s.Store, s),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("scenario API listening on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Close()
	}
	s.bus.Close()
	return s.Store.Close()
}
