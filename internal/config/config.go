package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the whole configuration surface: station identity, provider
// credentials, poll intervals, and the persisted store location.
type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// Station telemetry provider (Weather Underground PWS API).
	WUAPIKey    string
	WUStationID string

	// Municipal forecast provider (AEMET OpenData).
	AEMETAPIKey    string
	AEMETMunicipio string

	// Poll intervals. Telemetry runs fast, forecast/alerts slow; they are two
	// independent timers.
	TelemetryInterval time.Duration
	ForecastInterval  time.Duration

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// SQLitePath locates the observation store; empty selects the in-memory
	// store (dev only, nothing survives a restart).
	SQLitePath string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	cfg := &AppConfig{
		AppEnv:         getenvDefault("APP_ENV", "dev"),
		Port:           getenvDefault("PORT", "8080"),
		WUAPIKey:       os.Getenv("WEATHER_UNDERGROUND_API_KEY"),
		WUStationID:    os.Getenv("WEATHER_UNDERGROUND_STATION_ID"),
		AEMETAPIKey:    os.Getenv("AEMET_API_KEY"),
		AEMETMunicipio: getenvDefault("AEMET_MUNICIPIO", "23091"), // Villacarrillo
	}

	// Explicitly setting SQLITE_PATH to the empty string selects the
	// in-memory store; leaving it unset keeps the durable default.
	if v, ok := os.LookupEnv("SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	} else {
		cfg.SQLitePath = "data/observations.db"
	}

	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.TelemetryInterval, err = getenvDuration("TELEMETRY_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ForecastInterval, err = getenvDuration("FORECAST_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	if cfg.WUStationID == "" {
		return nil, fmt.Errorf("WEATHER_UNDERGROUND_STATION_ID is required")
	}
	if cfg.TelemetryInterval <= 0 || cfg.ForecastInterval <= 0 {
		return nil, fmt.Errorf("poll intervals must be positive")
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
