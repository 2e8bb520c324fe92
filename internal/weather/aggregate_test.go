package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 {
	return &v
}

func obsAt(t time.Time, temp *float64) Observation {
	return Observation{StationID: "ISTATION1", Timestamp: t, TempC: temp}
}

func TestSummarizeInvalidRange(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	_, err := Summarize(nil, now, now.Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	summary, err := Summarize(nil, start, start.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ObservationCount)
	assert.Nil(t, summary.TempMaxC)
	assert.Nil(t, summary.TempMinC)
	assert.Nil(t, summary.TempAvgC)
	assert.Nil(t, summary.HumidityAvg)
	assert.Nil(t, summary.WindAvgKph)
	assert.Nil(t, summary.WindGustMaxKph)
	assert.Nil(t, summary.PressureAvgMb)
	assert.Nil(t, summary.PrecipTotalMm)
}

func TestSummarizeSkipsNullSamples(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	observations := []Observation{
		obsAt(base, fptr(10)),
		obsAt(base.Add(5*time.Minute), nil),
		obsAt(base.Add(10*time.Minute), fptr(20)),
	}

	summary, err := Summarize(observations, base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ObservationCount)
	require.NotNil(t, summary.TempMaxC)
	assert.Equal(t, 20.0, *summary.TempMaxC)
	require.NotNil(t, summary.TempMinC)
	assert.Equal(t, 10.0, *summary.TempMinC)
	// Mean over the two reported samples, not over all three observations.
	require.NotNil(t, summary.TempAvgC)
	assert.Equal(t, 15.0, *summary.TempAvgC)
}

func TestSummarizeSingleObservation(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	observations := []Observation{{
		StationID:    "ISTATION1",
		Timestamp:    ts,
		TempC:        fptr(17.5),
		HumidityPct:  fptr(60),
		WindSpeedKph: fptr(12),
		WindGustKph:  fptr(30),
		PressureMb:   fptr(1013.2),
	}}

	summary, err := Summarize(observations, ts, ts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ObservationCount)
	assert.Equal(t, 17.5, *summary.TempMaxC)
	assert.Equal(t, 17.5, *summary.TempMinC)
	assert.Equal(t, 17.5, *summary.TempAvgC)
	assert.Equal(t, 60.0, *summary.HumidityAvg)
	assert.Equal(t, 12.0, *summary.WindAvgKph)
	assert.Equal(t, 30.0, *summary.WindGustMaxKph)
	assert.Equal(t, 1013.2, *summary.PressureAvgMb)
}

func TestSummarizeIgnoresOutOfWindowObservations(t *testing.T) {
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	observations := []Observation{
		obsAt(start.Add(-time.Second), fptr(99)),
		obsAt(start, fptr(10)),
		obsAt(end, fptr(12)),
		obsAt(end.Add(time.Second), fptr(99)),
	}

	summary, err := Summarize(observations, start, end)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ObservationCount)
	assert.Equal(t, 12.0, *summary.TempMaxC)
	assert.Equal(t, 10.0, *summary.TempMinC)
}

func TestSummarizePrecipDailyAccumulator(t *testing.T) {
	day1 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// The station reports a running daily total that resets at midnight; the
	// window total must sum each day's peak, not every sample.
	observations := []Observation{
		{StationID: "ISTATION1", Timestamp: day1.Add(6 * time.Hour), PrecipTotalMm: fptr(1.2)},
		{StationID: "ISTATION1", Timestamp: day1.Add(12 * time.Hour), PrecipTotalMm: fptr(4.8)},
		{StationID: "ISTATION1", Timestamp: day1.Add(18 * time.Hour), PrecipTotalMm: fptr(4.8)},
		{StationID: "ISTATION1", Timestamp: day2.Add(3 * time.Hour), PrecipTotalMm: fptr(0.4)},
		{StationID: "ISTATION1", Timestamp: day2.Add(9 * time.Hour), PrecipTotalMm: fptr(2.0)},
	}

	summary, err := Summarize(observations, day1, day2.Add(24*time.Hour-time.Second))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.ObservationCount)
	require.NotNil(t, summary.PrecipTotalMm)
	assert.InDelta(t, 6.8, *summary.PrecipTotalMm, 1e-9)
}

func TestSummarizeAllNullFieldStaysAbsent(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	observations := []Observation{
		{StationID: "ISTATION1", Timestamp: ts, HumidityPct: fptr(55)},
		{StationID: "ISTATION1", Timestamp: ts.Add(5 * time.Minute), HumidityPct: fptr(65)},
	}

	summary, err := Summarize(observations, ts, ts.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ObservationCount)
	assert.Nil(t, summary.TempMaxC)
	assert.Nil(t, summary.WindGustMaxKph)
	require.NotNil(t, summary.HumidityAvg)
	assert.Equal(t, 60.0, *summary.HumidityAvg)
}
