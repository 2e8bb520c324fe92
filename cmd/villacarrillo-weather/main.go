package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/Jomemo2105/villacarrillo-weather/internal/api/http"
	"github.com/Jomemo2105/villacarrillo-weather/internal/config"
	"github.com/Jomemo2105/villacarrillo-weather/internal/logging"
	"github.com/Jomemo2105/villacarrillo-weather/internal/observability"
	"github.com/Jomemo2105/villacarrillo-weather/internal/scheduler"
	"github.com/Jomemo2105/villacarrillo-weather/internal/store"
	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
	"github.com/Jomemo2105/villacarrillo-weather/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("prod", 0).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.AppEnv, cfg.LogLevel)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls; every call is bounded.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable observation store; the in-memory store is a dev fallback.
	var obsStore weather.Store
	var closeStore func() error
	if cfg.SQLitePath != "" {
		sqlStore, err := store.Open(cfg.SQLitePath)
		if err != nil {
			log.Error("failed to open observation store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		obsStore = sqlStore
		closeStore = sqlStore.Close
		log.Info("observation store opened", "path", cfg.SQLitePath)
	} else {
		obsStore = store.NewMemoryStore()
		closeStore = func() error { return nil }
		log.Warn("SQLITE_PATH empty: using in-memory store, nothing survives restart")
	}

	telemetry := providers.NewWundergroundProvider(httpClient, cfg.WUStationID, cfg.WUAPIKey, log)
	municipal := providers.NewAEMETProvider(httpClient, cfg.AEMETAPIKey, cfg.AEMETMunicipio, log)

	service := weather.NewService(
		cfg.WUStationID,
		obsStore,
		telemetry,
		municipal,
		cfg.ForecastInterval,
		clockwork.NewRealClock(),
		metrics,
		log,
	)

	sched := scheduler.New(service, cfg.TelemetryInterval, cfg.ForecastInterval, cfg.HTTPTimeout, metrics, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "villacarrillo-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "villacarrillo-weather",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service, httpapi.StationInfo{
		StationID:       cfg.WUStationID,
		APIConfigured:   cfg.WUAPIKey != "" && cfg.WUStationID != "",
		AEMETConfigured: cfg.AEMETAPIKey != "",
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("listening", "port", cfg.Port, "station", cfg.WUStationID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	if err := closeStore(); err != nil {
		log.Error("error closing store", "error", err)
	}
}
