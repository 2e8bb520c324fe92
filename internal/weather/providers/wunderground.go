package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

// WundergroundProvider implements weather.ObservationProvider against the
// Weather Underground PWS API (api.weather.com/v2/pws).
type WundergroundProvider struct {
	name      string
	stationID string
	apiKey    string
	baseURL   string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
	log       *slog.Logger
}

func NewWundergroundProvider(client *http.Client, stationID, apiKey string, log *slog.Logger) *WundergroundProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wunderground",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WundergroundProvider{
		name:      "wunderground",
		stationID: stationID,
		apiKey:    apiKey,
		baseURL:   "https://api.weather.com/v2/pws",
		client:    client,
		circuit:   cb,
		log:       log.With("provider", "wunderground"),
	}
}

func (p *WundergroundProvider) Name() string {
	return p.name
}

// SetBaseURL overrides the API endpoint; tests point it at a mock server.
func (p *WundergroundProvider) SetBaseURL(u string) {
	p.baseURL = u
}

// Current fetches the station's most recent observation.
func (p *WundergroundProvider) Current(ctx context.Context) (weather.Observation, error) {
	payload, err := p.fetch(ctx, "/observations/current", nil)
	if err != nil {
		return weather.Observation{}, err
	}
	if len(payload.Observations) == 0 {
		return weather.Observation{}, fmt.Errorf("%w: empty observations array", weather.ErrProviderMalformed)
	}

	obs, ok := p.parseObservation(payload.Observations[0])
	if !ok {
		return weather.Observation{}, fmt.Errorf("%w: observation without usable timestamp", weather.ErrProviderMalformed)
	}
	return obs, nil
}

// History fetches every observation the API holds for the UTC day containing
// the given instant. Records with unusable timestamps are skipped rather than
// failing the batch.
func (p *WundergroundProvider) History(ctx context.Context, day time.Time) ([]weather.Observation, error) {
	date := day.UTC().Format("20060102")
	payload, err := p.fetch(ctx, "/observations/all/1day", url.Values{"date": {date}})
	if err != nil {
		return nil, err
	}

	out := make([]weather.Observation, 0, len(payload.Observations))
	for _, raw := range payload.Observations {
		obs, ok := p.parseObservation(raw)
		if !ok {
			p.log.Warn("skipping history record without usable timestamp", "date", date)
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

type wuResponse struct {
	Observations []wuObservation `json:"observations"`
}

type wuObservation struct {
	StationID      string   `json:"stationID"`
	ObsTimeUTC     string   `json:"obsTimeUtc"`
	ObsTimeLocal   string   `json:"obsTimeLocal"`
	Humidity       *float64 `json:"humidity"`
	WindDir        *float64 `json:"winddir"`
	UV             *float64 `json:"uv"`
	SolarRadiation *float64 `json:"solarRadiation"`
	Metric         struct {
		Temp        *float64 `json:"temp"`
		Dewpt       *float64 `json:"dewpt"`
		WindSpeed   *float64 `json:"windSpeed"`
		WindGust    *float64 `json:"windGust"`
		Pressure    *float64 `json:"pressure"`
		PrecipRate  *float64 `json:"precipRate"`
		PrecipTotal *float64 `json:"precipTotal"`
	} `json:"metric"`
}

func (p *WundergroundProvider) fetch(ctx context.Context, path string, extra url.Values) (wuResponse, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("stationId", p.stationID)
		values.Set("format", "json")
		values.Set("units", "m")
		values.Set("apiKey", p.apiKey)
		for k, vs := range extra {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode()), nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return wuResponse{}, err
	}
	defer resp.Body.Close()

	var payload wuResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return wuResponse{}, fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
	}
	return payload, nil
}

// parseObservation maps a raw record onto the canonical observation. Missing
// fields stay nil; only a missing timestamp disqualifies the record.
func (p *WundergroundProvider) parseObservation(raw wuObservation) (weather.Observation, bool) {
	ts, ok := parseObsTime(raw.ObsTimeUTC, raw.ObsTimeLocal)
	if !ok {
		return weather.Observation{}, false
	}

	stationID := raw.StationID
	if stationID == "" {
		stationID = p.stationID
	}

	return weather.Observation{
		StationID:         stationID,
		Timestamp:         ts,
		TempC:             raw.Metric.Temp,
		DewpointC:         raw.Metric.Dewpt,
		HumidityPct:       raw.Humidity,
		PressureMb:        raw.Metric.Pressure,
		WindSpeedKph:      raw.Metric.WindSpeed,
		WindGustKph:       raw.Metric.WindGust,
		WindDirDeg:        raw.WindDir,
		PrecipRateMmh:     raw.Metric.PrecipRate,
		PrecipTotalMm:     raw.Metric.PrecipTotal,
		UVIndex:           raw.UV,
		SolarRadiationWm2: raw.SolarRadiation,
	}, true
}

func parseObsTime(utcStr, localStr string) (time.Time, bool) {
	for _, candidate := range []string{utcStr, localStr} {
		if candidate == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, candidate); err == nil {
			return ts.UTC().Truncate(time.Second), true
		}
		// The local field comes back without a zone ("2006-01-02 15:04:05").
		if ts, err := time.Parse("2006-01-02 15:04:05", candidate); err == nil {
			return ts.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}
