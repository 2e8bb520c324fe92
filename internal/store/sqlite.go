package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

// ErrNotFound is returned when no observation exists for a station.
// It aliases the façade's sentinel so errors.Is works across packages.
var ErrNotFound = weather.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	station_id          TEXT NOT NULL,
	timestamp           TEXT NOT NULL,
	temp_c              REAL,
	dewpoint_c          REAL,
	humidity_pct        REAL,
	pressure_mb         REAL,
	wind_speed_kph      REAL,
	wind_gust_kph       REAL,
	wind_dir_deg        REAL,
	precip_rate_mmh     REAL,
	precip_total_mm     REAL,
	uv_index            REAL,
	solar_radiation_wm2 REAL,
	PRIMARY KEY (station_id, timestamp)
);
`

const insertSQL = `
INSERT OR IGNORE INTO observations (
	station_id, timestamp, temp_c, dewpoint_c, humidity_pct, pressure_mb,
	wind_speed_kph, wind_gust_kph, wind_dir_deg, precip_rate_mmh,
	precip_total_mm, uv_index, solar_radiation_wm2
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const selectColumns = `
	station_id, timestamp, temp_c, dewpoint_c, humidity_pct, pressure_mb,
	wind_speed_kph, wind_gust_kph, wind_dir_deg, precip_rate_mmh,
	precip_total_mm, uv_index, solar_radiation_wm2
`

// SQLiteStore persists observations in a single SQLite database. WAL mode
// gives the single-writer/multi-reader discipline the ingestion path needs:
// the scheduler's inserts are serialized by SQLite while readers keep reading
// committed state.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path and ensures the
// schema exists. Timestamps are stored as RFC3339 UTC strings truncated to
// whole seconds, so lexicographic order matches chronological order.
func Open(path string) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between the writer stream and
	// schema/setup statements; reads are short enough not to need a pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func buildDSN(path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// busy_timeout smooths over writer/reader contention; WAL keeps readers
	// unblocked while an insert commits; synchronous=NORMAL still fsyncs the
	// WAL at checkpoint, which is durable enough for append-only telemetry.
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert writes one observation if its (station, timestamp) key is absent.
// A duplicate leaves the stored record untouched and is not an error; the
// write is committed before Insert returns.
func (s *SQLiteStore) Insert(obs weather.Observation) (weather.InsertResult, error) {
	ts := obs.Timestamp.UTC().Truncate(time.Second).Format(time.RFC3339)

	res, err := s.db.Exec(insertSQL,
		obs.StationID, ts,
		obs.TempC, obs.DewpointC, obs.HumidityPct, obs.PressureMb,
		obs.WindSpeedKph, obs.WindGustKph, obs.WindDirDeg,
		obs.PrecipRateMmh, obs.PrecipTotalMm, obs.UVIndex, obs.SolarRadiationWm2,
	)
	if err != nil {
		return weather.Duplicate, fmt.Errorf("insert observation %s: %w", obs.Key(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return weather.Duplicate, fmt.Errorf("insert observation %s: %w", obs.Key(), err)
	}
	if n == 0 {
		return weather.Duplicate, nil
	}
	return weather.Inserted, nil
}

// RangeQuery returns the station's observations with start <= timestamp <= end,
// ascending by timestamp. An empty window yields an empty slice, not an error.
func (s *SQLiteStore) RangeQuery(stationID string, start, end time.Time) ([]weather.Observation, error) {
	startStr := start.UTC().Truncate(time.Second).Format(time.RFC3339)
	endStr := end.UTC().Truncate(time.Second).Format(time.RFC3339)

	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM observations
		 WHERE station_id = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp ASC`,
		stationID, startStr, endStr,
	)
	if err != nil {
		return nil, fmt.Errorf("range query %s: %w", stationID, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Latest returns the single most recent observation for the station, or
// ErrNotFound when none exist.
func (s *SQLiteStore) Latest(stationID string) (weather.Observation, error) {
	row := s.db.QueryRow(
		`SELECT `+selectColumns+` FROM observations
		 WHERE station_id = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		stationID,
	)

	obs, err := scanObservation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Observation{}, ErrNotFound
	}
	if err != nil {
		return weather.Observation{}, fmt.Errorf("latest %s: %w", stationID, err)
	}
	return obs, nil
}

func scanObservations(rows *sql.Rows) ([]weather.Observation, error) {
	var out []weather.Observation
	for rows.Next() {
		obs, err := scanObservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

func scanObservation(scan func(dest ...any) error) (weather.Observation, error) {
	var (
		obs record
		ts  string
	)
	err := scan(
		&obs.StationID, &ts,
		&obs.TempC, &obs.DewpointC, &obs.HumidityPct, &obs.PressureMb,
		&obs.WindSpeedKph, &obs.WindGustKph, &obs.WindDirDeg,
		&obs.PrecipRateMmh, &obs.PrecipTotalMm, &obs.UVIndex, &obs.SolarRadiationWm2,
	)
	if err != nil {
		return weather.Observation{}, err
	}

	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("parse stored timestamp %q: %w", ts, err)
	}

	return weather.Observation{
		StationID:         obs.StationID,
		Timestamp:         t.UTC(),
		TempC:             floatPtr(obs.TempC),
		DewpointC:         floatPtr(obs.DewpointC),
		HumidityPct:       floatPtr(obs.HumidityPct),
		PressureMb:        floatPtr(obs.PressureMb),
		WindSpeedKph:      floatPtr(obs.WindSpeedKph),
		WindGustKph:       floatPtr(obs.WindGustKph),
		WindDirDeg:        floatPtr(obs.WindDirDeg),
		PrecipRateMmh:     floatPtr(obs.PrecipRateMmh),
		PrecipTotalMm:     floatPtr(obs.PrecipTotalMm),
		UVIndex:           floatPtr(obs.UVIndex),
		SolarRadiationWm2: floatPtr(obs.SolarRadiationWm2),
	}, nil
}

// record mirrors the table row with database null handling.
type record struct {
	StationID         string
	TempC             sql.NullFloat64
	DewpointC         sql.NullFloat64
	HumidityPct       sql.NullFloat64
	PressureMb        sql.NullFloat64
	WindSpeedKph      sql.NullFloat64
	WindGustKph       sql.NullFloat64
	WindDirDeg        sql.NullFloat64
	PrecipRateMmh     sql.NullFloat64
	PrecipTotalMm     sql.NullFloat64
	UVIndex           sql.NullFloat64
	SolarRadiationWm2 sql.NullFloat64
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
