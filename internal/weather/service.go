package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Jomemo2105/villacarrillo-weather/internal/observability"
)

// ErrNotFound is returned by Latest (and re-exported by the store package)
// when no observation exists for a station.
var ErrNotFound = errors.New("no observations for station")

// ErrRangeTooWide is returned when a history query spans more than
// MaxHistoryDays days.
var ErrRangeTooWide = errors.New("range too wide")

// MaxHistoryDays bounds a single history query; the provider's 1-day history
// endpoint makes wide backfills expensive, and the UI never asks for more.
const MaxHistoryDays = 31

// sparseWindowThreshold is the row count below which a last-24h read triggers
// a same-day backfill before answering.
const sparseWindowThreshold = 10

const (
	cacheKeyForecast = "forecast"
	cacheKeyAlerts   = "alerts"
)

// Service is the query façade: the single entry point the HTTP layer and the
// scheduler talk to. The write path (scheduled fetches) and the read path
// share nothing but the store, so reads never block on an in-flight fetch.
type Service struct {
	stationID string
	store     Store
	telemetry ObservationProvider
	municipal ForecastProvider

	cache    *gocache.Cache
	cacheTTL time.Duration
	status   *FetchStatus
	clock    clockwork.Clock
	metrics  *observability.Metrics
	log      *slog.Logger
}

// NewService wires the façade. cacheTTL controls how long forecast and alert
// payloads are served from cache before the next upstream fetch; it should
// match the forecast poll interval.
func NewService(
	stationID string,
	store Store,
	telemetry ObservationProvider,
	municipal ForecastProvider,
	cacheTTL time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		stationID: stationID,
		store:     store,
		telemetry: telemetry,
		municipal: municipal,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
		cacheTTL:  cacheTTL,
		status:    NewFetchStatus(),
		clock:     clock,
		metrics:   metrics,
		log:       log.With("component", "weather-service"),
	}
}

// Status exposes the fetch-freshness view shared with the scheduler.
func (s *Service) Status() StatusSnapshot {
	return s.status.Snapshot()
}

// StationID returns the configured station identity.
func (s *Service) StationID() string {
	return s.stationID
}

// FetchAndStoreCurrent pulls the station's newest observation and merges it
// into the store. The merge is idempotent: refetching an already-stored
// instant is a duplicate no-op, not an overwrite.
func (s *Service) FetchAndStoreCurrent(ctx context.Context) (Observation, error) {
	start := s.clock.Now()
	obs, err := s.telemetry.Current(ctx)
	s.metrics.FetchDuration.WithLabelValues(s.telemetry.Name()).Observe(s.clock.Since(start).Seconds())
	if err != nil {
		s.metrics.FetchTotal.WithLabelValues(s.telemetry.Name(), "error").Inc()
		return Observation{}, err
	}
	s.metrics.FetchTotal.WithLabelValues(s.telemetry.Name(), "success").Inc()

	if err := s.merge(obs); err != nil {
		return Observation{}, err
	}

	now := s.clock.Now().UTC()
	s.status.MarkTelemetrySuccess(now)
	s.metrics.LastSuccess.WithLabelValues("telemetry").Set(float64(now.Unix()))
	return obs, nil
}

// CurrentConditions is the Current() result; Source tells the caller whether
// the data came from a live fetch or the last committed store state.
type CurrentConditions struct {
	Observation Observation `json:"observation"`
	Source      string      `json:"source"`
}

// Current returns the freshest conditions available: a live fetch when the
// provider answers, otherwise the most recent stored observation.
func (s *Service) Current(ctx context.Context) (CurrentConditions, error) {
	obs, err := s.FetchAndStoreCurrent(ctx)
	if err == nil {
		return CurrentConditions{Observation: obs, Source: "live"}, nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return CurrentConditions{}, err
	}

	s.log.Warn("live fetch failed, falling back to stored state", "error", err)

	latest, lerr := s.store.Latest(s.stationID)
	if lerr != nil {
		if errors.Is(lerr, ErrNotFound) {
			// Nothing cached either: surface the provider failure.
			return CurrentConditions{}, err
		}
		return CurrentConditions{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, lerr)
	}
	return CurrentConditions{Observation: latest, Source: "cache"}, nil
}

// History returns the station's observations in [start, end], ascending.
// Days with no stored rows are backfilled from the provider's 1-day history
// endpoint first; backfill failures are logged and the read proceeds with
// whatever the store holds.
func (s *Service) History(ctx context.Context, start, end time.Time) ([]Observation, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}
	if end.Sub(start) > MaxHistoryDays*24*time.Hour {
		return nil, fmt.Errorf("%w: window exceeds %d days", ErrRangeTooWide, MaxHistoryDays)
	}

	s.backfill(ctx, start, end)

	obs, err := s.store.RangeQuery(s.stationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return obs, nil
}

// Statistics aggregates the stored observations in [start, end]. Unlike
// History the window is uncapped: aggregation only reads the store and never
// triggers provider backfill, so wide windows stay cheap. A window with zero
// observations is a valid zero-count summary, not an error.
func (s *Service) Statistics(ctx context.Context, start, end time.Time) (StatisticsSummary, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return StatisticsSummary{}, err
	}

	obs, err := s.store.RangeQuery(s.stationID, start, end)
	if err != nil {
		return StatisticsSummary{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Summarize(obs, start, end)
}

// Last24h returns the observations and summary for [now-24h, now].
func (s *Service) Last24h(ctx context.Context) ([]Observation, StatisticsSummary, error) {
	end := s.clock.Now().UTC().Truncate(time.Second)
	start := end.Add(-24 * time.Hour)

	obs, err := s.store.RangeQuery(s.stationID, start, end)
	if err != nil {
		return nil, StatisticsSummary{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// A sparse window usually means the service was down for part of the day;
	// pull today's history once and re-read.
	if len(obs) < sparseWindowThreshold {
		s.backfillDay(ctx, end)
		obs, err = s.store.RangeQuery(s.stationID, start, end)
		if err != nil {
			return nil, StatisticsSummary{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	summary, err := Summarize(obs, start, end)
	if err != nil {
		return nil, StatisticsSummary{}, err
	}
	return obs, summary, nil
}

// RefreshForecast fetches the municipal forecast and active alerts and caches
// both for the poll interval. Called by the scheduler's slow job.
func (s *Service) RefreshForecast(ctx context.Context) error {
	fetchStart := s.clock.Now()
	bulletin, fErr := s.municipal.Forecast(ctx)
	s.metrics.FetchDuration.WithLabelValues(s.municipal.Name()).Observe(s.clock.Since(fetchStart).Seconds())
	if fErr == nil {
		s.cache.Set(cacheKeyForecast, bulletin, s.cacheTTL)
	}

	alerts, aErr := s.municipal.Alerts(ctx)
	if aErr == nil {
		s.cache.Set(cacheKeyAlerts, alerts, s.cacheTTL)
	}

	if fErr != nil || aErr != nil {
		s.metrics.FetchTotal.WithLabelValues(s.municipal.Name(), "error").Inc()
		return errors.Join(fErr, aErr)
	}

	s.metrics.FetchTotal.WithLabelValues(s.municipal.Name(), "success").Inc()
	now := s.clock.Now().UTC()
	s.status.MarkForecastSuccess(now)
	s.metrics.LastSuccess.WithLabelValues("forecast").Set(float64(now.Unix()))
	return nil
}

// Forecast returns the cached municipal forecast, fetching on a cache miss.
func (s *Service) Forecast(ctx context.Context) (ForecastBulletin, error) {
	if cached, ok := s.cache.Get(cacheKeyForecast); ok {
		return cached.(ForecastBulletin), nil
	}

	bulletin, err := s.municipal.Forecast(ctx)
	if err != nil {
		return ForecastBulletin{}, err
	}
	s.cache.Set(cacheKeyForecast, bulletin, s.cacheTTL)
	return bulletin, nil
}

// Alerts returns the cached active alerts, fetching on a cache miss. An empty
// list is a normal result.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	if cached, ok := s.cache.Get(cacheKeyAlerts); ok {
		return cached.([]Alert), nil
	}

	alerts, err := s.municipal.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyAlerts, alerts, s.cacheTTL)
	return alerts, nil
}

// merge inserts one observation and records the result. Duplicates are normal
// during backfills and never an error.
func (s *Service) merge(obs Observation) error {
	result, err := s.store.Insert(obs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.metrics.ObservationsMerged.WithLabelValues(result.String()).Inc()
	return nil
}

// backfill walks each UTC day of the window and fetches provider history for
// days the store knows nothing about. Each record merges independently, so an
// abandoned batch leaves prior inserts intact.
func (s *Service) backfill(ctx context.Context, start, end time.Time) {
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		dayEnd := day.Add(24*time.Hour - time.Second)
		if dayEnd.After(end) {
			dayEnd = end
		}
		dayStart := day
		if dayStart.Before(start) {
			dayStart = start
		}

		stored, err := s.store.RangeQuery(s.stationID, dayStart, dayEnd)
		if err != nil {
			s.log.Error("backfill range check failed", "day", day.Format("2006-01-02"), "error", err)
			return
		}
		if len(stored) > 0 {
			continue
		}
		s.backfillDay(ctx, day)
	}
}

func (s *Service) backfillDay(ctx context.Context, day time.Time) {
	fetched, err := s.telemetry.History(ctx, day)
	if err != nil {
		s.metrics.FetchTotal.WithLabelValues(s.telemetry.Name(), "error").Inc()
		s.log.Warn("history backfill failed", "day", day.UTC().Format("2006-01-02"), "error", err)
		return
	}
	s.metrics.FetchTotal.WithLabelValues(s.telemetry.Name(), "success").Inc()

	for _, obs := range fetched {
		if err := s.merge(obs); err != nil {
			s.log.Error("backfill merge failed", "key", obs.Key(), "error", err)
			return
		}
	}
}

func normalizeRange(start, end time.Time) (time.Time, time.Time, error) {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return start, end, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
