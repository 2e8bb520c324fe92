package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Jomemo2105/villacarrillo-weather/internal/observability"
	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

// Service is the slice of the query façade the scheduler drives.
type Service interface {
	FetchAndStoreCurrent(ctx context.Context) (weather.Observation, error)
	RefreshForecast(ctx context.Context) error
}

// Scheduler runs the two independent ingestion jobs: a fast station telemetry
// poll and a slower forecast/alerts poll. Each job allows at most one
// concurrent run; a tick that lands while the previous cycle is still in
// flight is dropped, never queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Service

	telemetryInterval time.Duration
	forecastInterval  time.Duration
	fetchTimeout      time.Duration

	telemetryBusy atomic.Bool
	forecastBusy  atomic.Bool

	metrics *observability.Metrics
	log     *slog.Logger
}

// New creates a Scheduler with the given poll intervals and per-cycle fetch
// timeout.
func New(service Service, telemetryInterval, forecastInterval, fetchTimeout time.Duration, metrics *observability.Metrics, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:         gocron.NewScheduler(time.UTC),
		service:           service,
		telemetryInterval: telemetryInterval,
		forecastInterval:  forecastInterval,
		fetchTimeout:      fetchTimeout,
		metrics:           metrics,
		log:               log.With("component", "scheduler"),
	}
}

// Start schedules both jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.telemetryInterval).Do(s.RunTelemetryCycle); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(s.forecastInterval).Do(s.RunForecastCycle); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started",
		"telemetry_interval", s.telemetryInterval,
		"forecast_interval", s.forecastInterval,
	)
	return nil
}

// Stop stops the scheduler; an in-flight cycle is allowed to finish. Inserts
// are per-record idempotent, so abandoning a batch mid-way never leaves the
// store inconsistent.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunTelemetryCycle executes one telemetry tick. A failed cycle only logs:
// previously stored data and the last-success marker stay untouched, and the
// next tick is the retry.
func (s *Scheduler) RunTelemetryCycle() {
	if !s.telemetryBusy.CompareAndSwap(false, true) {
		s.metrics.TicksSkipped.WithLabelValues("telemetry").Inc()
		s.log.Warn("telemetry tick skipped: previous cycle still running")
		return
	}
	defer s.telemetryBusy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	obs, err := s.service.FetchAndStoreCurrent(ctx)
	if err != nil {
		s.log.Error("telemetry cycle failed", "error", err)
		return
	}
	s.log.Debug("telemetry cycle complete", "key", obs.Key())
}

// RunForecastCycle executes one forecast/alerts tick.
func (s *Scheduler) RunForecastCycle() {
	if !s.forecastBusy.CompareAndSwap(false, true) {
		s.metrics.TicksSkipped.WithLabelValues("forecast").Inc()
		s.log.Warn("forecast tick skipped: previous cycle still running")
		return
	}
	defer s.forecastBusy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	if err := s.service.RefreshForecast(ctx); err != nil {
		s.log.Error("forecast cycle failed", "error", err)
		return
	}
	s.log.Debug("forecast cycle complete")
}
