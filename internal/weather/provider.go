package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable marks network errors, timeouts and non-2xx
	// responses from an upstream provider.
	ErrProviderUnavailable = errors.New("weather provider unavailable")

	// ErrProviderMalformed marks payloads that could not be parsed.
	ErrProviderMalformed = errors.New("weather provider returned malformed payload")

	// ErrInvalidRange is returned when a caller supplies start > end.
	ErrInvalidRange = errors.New("invalid range: start is after end")

	// ErrStoreUnavailable wraps persistence-layer failures. It is fatal to the
	// operation that hit it and must never be reported as an empty result.
	ErrStoreUnavailable = errors.New("observation store unavailable")
)

// ObservationProvider abstracts the station telemetry source
// (Weather Underground PWS API for this deployment).
type ObservationProvider interface {
	Name() string

	// Current fetches the most recent observation reported by the station.
	Current(ctx context.Context) (Observation, error)

	// History fetches all observations the provider holds for the UTC day
	// containing the given instant.
	History(ctx context.Context, day time.Time) ([]Observation, error)
}

// ForecastProvider abstracts the municipal forecast/alert source (AEMET).
type ForecastProvider interface {
	Name() string
	Forecast(ctx context.Context) (ForecastBulletin, error)
	Alerts(ctx context.Context) ([]Alert, error)
}

// InsertResult reports what Insert did with a record.
type InsertResult int

const (
	// Inserted means the record was new and is now durably stored.
	Inserted InsertResult = iota
	// Duplicate means a record with the same (station, timestamp) key already
	// existed; the stored record is left untouched.
	Duplicate
)

func (r InsertResult) String() string {
	if r == Inserted {
		return "inserted"
	}
	return "duplicate"
}

// Store is the contract the observation store must satisfy. Inserts are
// idempotent on (StationID, Timestamp); a duplicate is never an error.
type Store interface {
	Insert(obs Observation) (InsertResult, error)
	RangeQuery(stationID string, start, end time.Time) ([]Observation, error)
	Latest(stationID string) (Observation, error)
}
