package providers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

const wuTestURL = "https://wu.test/v2/pws"

func newTestWunderground(t *testing.T) (*WundergroundProvider, *http.Client) {
	t.Helper()

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	p := NewWundergroundProvider(client, "IVILLA42", "test-key", slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.SetBaseURL(wuTestURL)
	return p, client
}

func TestWundergroundCurrentParsesMetricSubobject(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/current",
		httpmock.NewStringResponder(200, `{
			"observations": [{
				"stationID": "IVILLA42",
				"obsTimeUtc": "2026-03-14T11:55:00Z",
				"humidity": 63,
				"winddir": 270,
				"uv": 4.5,
				"solarRadiation": 512.3,
				"metric": {
					"temp": 18.2,
					"dewpt": 11.1,
					"windSpeed": 9.4,
					"windGust": 14.8,
					"pressure": 1013.6,
					"precipRate": 0.0,
					"precipTotal": 1.2
				}
			}]
		}`))

	obs, err := p.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "IVILLA42", obs.StationID)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 55, 0, 0, time.UTC), obs.Timestamp)
	require.NotNil(t, obs.TempC)
	assert.Equal(t, 18.2, *obs.TempC)
	require.NotNil(t, obs.HumidityPct)
	assert.Equal(t, 63.0, *obs.HumidityPct)
	require.NotNil(t, obs.PrecipRateMmh)
	assert.Equal(t, 0.0, *obs.PrecipRateMmh)
	require.NotNil(t, obs.PressureMb)
	assert.Equal(t, 1013.6, *obs.PressureMb)
}

func TestWundergroundCurrentKeepsNullFieldsAbsent(t *testing.T) {
	p, _ := newTestWunderground(t)

	// A station with a broken sensor reports null; null must not become zero.
	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/current",
		httpmock.NewStringResponder(200, `{
			"observations": [{
				"obsTimeUtc": "2026-03-14T11:55:00Z",
				"humidity": null,
				"metric": {"temp": null, "pressure": 1010.0}
			}]
		}`))

	obs, err := p.Current(context.Background())
	require.NoError(t, err)

	assert.Nil(t, obs.TempC)
	assert.Nil(t, obs.HumidityPct)
	assert.Nil(t, obs.WindSpeedKph)
	require.NotNil(t, obs.PressureMb)
	assert.Equal(t, 1010.0, *obs.PressureMb)
	// The provider fills in the configured station when the payload omits it.
	assert.Equal(t, "IVILLA42", obs.StationID)
}

func TestWundergroundCurrentEmptyObservations(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/current",
		httpmock.NewStringResponder(200, `{"observations": []}`))

	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, weather.ErrProviderMalformed)
}

func TestWundergroundCurrentServerError(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/current",
		httpmock.NewStringResponder(502, "bad gateway"))

	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestWundergroundCurrentMalformedBody(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/current",
		httpmock.NewStringResponder(200, `{"observations": [`))

	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, weather.ErrProviderMalformed)
}

func TestWundergroundHistorySkipsRecordsWithoutTimestamp(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/all/1day",
		httpmock.NewStringResponder(200, `{
			"observations": [
				{"obsTimeUtc": "2026-03-14T00:05:00Z", "metric": {"temp": 7.0}},
				{"metric": {"temp": 8.0}},
				{"obsTimeUtc": "2026-03-14T00:10:00Z", "metric": {"temp": 7.2}}
			]
		}`))

	obs, err := p.History(context.Background(), time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 5, 0, 0, time.UTC), obs[0].Timestamp)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 10, 0, 0, time.UTC), obs[1].Timestamp)
}

func TestWundergroundHistorySendsRequestedDate(t *testing.T) {
	p, _ := newTestWunderground(t)

	httpmock.RegisterResponder(http.MethodGet, wuTestURL+"/observations/all/1day",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "20260310", req.URL.Query().Get("date"))
			assert.Equal(t, "IVILLA42", req.URL.Query().Get("stationId"))
			assert.Equal(t, "m", req.URL.Query().Get("units"))
			return httpmock.NewStringResponse(200, `{"observations": []}`), nil
		})

	obs, err := p.History(context.Background(), time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestParseObsTimeFallsBackToLocalFormat(t *testing.T) {
	ts, ok := parseObsTime("", "2026-03-14 12:30:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC), ts)

	_, ok = parseObsTime("", "")
	assert.False(t, ok)

	_, ok = parseObsTime("not-a-time", "also-not")
	assert.False(t, ok)
}
