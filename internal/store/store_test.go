package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

const testStation = "IVILLA42"

func fptr(v float64) *float64 {
	return &v
}

func testObservation(ts time.Time) weather.Observation {
	return weather.Observation{
		StationID:   testStation,
		Timestamp:   ts,
		TempC:       fptr(18.4),
		HumidityPct: fptr(52),
		WindDirDeg:  fptr(270),
	}
}

// forEachStore runs the same contract tests against the SQLite store and the
// in-memory store.
func forEachStore(t *testing.T, run func(t *testing.T, s weather.Store)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "observations.db"))
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, s.Close())
		})
		run(t, s)
	})

	t.Run("memory", func(t *testing.T) {
		run(t, NewMemoryStore())
	})
}

func TestInsertIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		ts := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		obs := testObservation(ts)

		result, err := s.Insert(obs)
		require.NoError(t, err)
		assert.Equal(t, weather.Inserted, result)

		for i := 0; i < 3; i++ {
			result, err = s.Insert(obs)
			require.NoError(t, err)
			assert.Equal(t, weather.Duplicate, result)
		}

		stored, err := s.RangeQuery(testStation, ts, ts)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, obs.Key(), stored[0].Key())
	})
}

func TestDuplicateDoesNotOverwrite(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		ts := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

		first := testObservation(ts)
		_, err := s.Insert(first)
		require.NoError(t, err)

		altered := testObservation(ts)
		altered.TempC = fptr(99)
		result, err := s.Insert(altered)
		require.NoError(t, err)
		assert.Equal(t, weather.Duplicate, result)

		stored, err := s.RangeQuery(testStation, ts, ts)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, 18.4, *stored[0].TempC)
	})
}

func TestRangeQueryBoundsAndOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		var stamps []time.Time
		for i := 0; i < 5; i++ {
			stamps = append(stamps, base.Add(time.Duration(i)*time.Hour))
		}

		// Insert out of order; reads must still come back ascending.
		for _, i := range []int{3, 0, 4, 2, 1} {
			_, err := s.Insert(testObservation(stamps[i]))
			require.NoError(t, err)
		}

		got, err := s.RangeQuery(testStation, stamps[1], stamps[3])
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, obs := range got {
			assert.True(t, obs.Timestamp.Equal(stamps[i+1]), "row %d: got %v want %v", i, obs.Timestamp, stamps[i+1])
		}
	})
}

func TestRangeQueryEmptyWindow(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		_, err := s.Insert(testObservation(ts))
		require.NoError(t, err)

		got, err := s.RangeQuery(testStation, ts.Add(time.Hour), ts.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRangeQueryIgnoresOtherStations(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		other := testObservation(ts)
		other.StationID = "IOTHER1"
		_, err := s.Insert(other)
		require.NoError(t, err)

		got, err := s.RangeQuery(testStation, ts.Add(-time.Hour), ts.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLatest(t *testing.T) {
	forEachStore(t, func(t *testing.T, s weather.Store) {
		_, err := s.Latest(testStation)
		assert.ErrorIs(t, err, ErrNotFound)

		base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
			_, err := s.Insert(testObservation(base.Add(offset)))
			require.NoError(t, err)
		}

		latest, err := s.Latest(testStation)
		require.NoError(t, err)
		assert.True(t, latest.Timestamp.Equal(base.Add(2*time.Hour)))
	})
}

func TestSQLiteNullFieldsRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "observations.db"))
	require.NoError(t, err)
	defer s.Close()

	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	obs := weather.Observation{
		StationID: testStation,
		Timestamp: ts,
		TempC:     fptr(0), // reported zero must survive as zero, not null
	}
	_, err = s.Insert(obs)
	require.NoError(t, err)

	stored, err := s.Latest(testStation)
	require.NoError(t, err)

	require.NotNil(t, stored.TempC)
	assert.Equal(t, 0.0, *stored.TempC)
	assert.Nil(t, stored.HumidityPct)
	assert.Nil(t, stored.PrecipTotalMm)
	assert.Nil(t, stored.SolarRadiationWm2)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.db")
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Insert(testObservation(ts))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	latest, err := reopened.Latest(testStation)
	require.NoError(t, err)
	assert.True(t, latest.Timestamp.Equal(ts))
}
