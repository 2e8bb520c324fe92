package weather

import (
	"sync"
	"time"
)

// FetchStatus records when each background fetch job last succeeded. It is an
// explicitly owned struct shared between the scheduler-driven write path and
// the query façade, so callers can always tell how fresh the cached state is.
type FetchStatus struct {
	mu        sync.RWMutex
	telemetry time.Time
	forecast  time.Time
}

func NewFetchStatus() *FetchStatus {
	return &FetchStatus{}
}

func (s *FetchStatus) MarkTelemetrySuccess(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t.UTC()
}

func (s *FetchStatus) MarkForecastSuccess(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecast = t.UTC()
}

// StatusSnapshot is the read-side view; nil means "never succeeded".
type StatusSnapshot struct {
	LastTelemetrySuccessAt *time.Time `json:"last_telemetry_success_at"`
	LastForecastSuccessAt  *time.Time `json:"last_forecast_success_at"`
}

func (s *FetchStatus) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap StatusSnapshot
	if !s.telemetry.IsZero() {
		t := s.telemetry
		snap.LastTelemetrySuccessAt = &t
	}
	if !s.forecast.IsZero() {
		t := s.forecast
		snap.LastForecastSuccessAt = &t
	}
	return snap
}
