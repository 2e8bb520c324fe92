package weather

import (
	"time"
)

// Observation is one reading from the station at one instant.
// (StationID, Timestamp) uniquely identifies an observation; timestamps are
// always UTC at second precision. Providers may omit any measurement, so every
// numeric field is a pointer: nil means "not reported", which is distinct from
// a reported zero.
type Observation struct {
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"timestamp"`

	TempC             *float64 `json:"temp_c"`
	DewpointC         *float64 `json:"dewpoint_c"`
	HumidityPct       *float64 `json:"humidity_pct"`
	PressureMb        *float64 `json:"pressure_mb"`
	WindSpeedKph      *float64 `json:"wind_speed_kph"`
	WindGustKph       *float64 `json:"wind_gust_kph"`
	WindDirDeg        *float64 `json:"wind_dir_deg"`
	PrecipRateMmh     *float64 `json:"precip_rate_mmh"`
	PrecipTotalMm     *float64 `json:"precip_total_mm"`
	UVIndex           *float64 `json:"uv_index"`
	SolarRadiationWm2 *float64 `json:"solar_radiation_wm2"`
}

// Key returns the canonical identity string for deduplication and logging.
func (o Observation) Key() string {
	return o.StationID + ":" + o.Timestamp.UTC().Format(time.RFC3339)
}

// StatisticsSummary is derived from the observations inside a closed time
// window; it is never stored. ObservationCount == 0 means every numeric field
// is nil: a window with no data is not a window with zero humidity.
type StatisticsSummary struct {
	TempMaxC       *float64 `json:"temp_max_c"`
	TempMinC       *float64 `json:"temp_min_c"`
	TempAvgC       *float64 `json:"temp_avg_c"`
	HumidityAvg    *float64 `json:"humidity_avg"`
	WindAvgKph     *float64 `json:"wind_avg_kph"`
	WindGustMaxKph *float64 `json:"wind_gust_max_kph"`
	PressureAvgMb  *float64 `json:"pressure_avg_mb"`
	PrecipTotalMm  *float64 `json:"precip_total_mm"`

	ObservationCount int `json:"observation_count"`
}

// ForecastDay is one day of the municipal forecast. It is presentation-adjacent
// data: fetched fresh from the secondary provider, cached only for the poll
// interval, never merged into the observation store.
type ForecastDay struct {
	Date           string   `json:"date"`
	TempMaxC       *float64 `json:"temp_max_c"`
	TempMinC       *float64 `json:"temp_min_c"`
	Sky            string   `json:"sky"`
	PrecipProbPct  *int     `json:"precip_prob_pct"`
	WindSpeedKph   *float64 `json:"wind_speed_kph"`
	WindDirection  string   `json:"wind_direction"`
	HumidityMaxPct *int     `json:"humidity_max_pct"`
	HumidityMinPct *int     `json:"humidity_min_pct"`
}

// ForecastBulletin is the short-range forecast for the configured municipality.
type ForecastBulletin struct {
	Municipality string        `json:"municipality"`
	Province     string        `json:"province"`
	IssuedAt     string        `json:"issued_at"`
	Days         []ForecastDay `json:"days"`
}

// Alert is one active CAP weather warning for the station's area.
type Alert struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}
