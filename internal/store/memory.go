package store

import (
	"sort"
	"sync"
	"time"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of the
// observation store. It honors the same idempotent-insert contract as the
// SQLite store and backs tests and no-persistence dev runs.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id, value: observations sorted ascending by timestamp
	data map[string][]weather.Observation
	keys map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]weather.Observation),
		keys: make(map[string]struct{}),
	}
}

// Insert adds the observation unless its (station, timestamp) key exists.
func (s *MemoryStore) Insert(obs weather.Observation) (weather.InsertResult, error) {
	obs.Timestamp = obs.Timestamp.UTC().Truncate(time.Second)
	key := obs.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return weather.Duplicate, nil
	}
	s.keys[key] = struct{}{}

	history := append(s.data[obs.StationID], obs)
	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	s.data[obs.StationID] = history

	return weather.Inserted, nil
}

// RangeQuery returns observations with start <= timestamp <= end, ascending.
func (s *MemoryStore) RangeQuery(stationID string, start, end time.Time) ([]weather.Observation, error) {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Observation
	for _, obs := range s.data[stationID] {
		if !obs.Timestamp.Before(start) && !obs.Timestamp.After(end) {
			result = append(result, obs)
		}
	}
	return result, nil
}

// Latest returns the most recent observation for the station.
func (s *MemoryStore) Latest(stationID string) (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[stationID]
	if len(history) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return history[len(history)-1], nil
}
