package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Jomemo2105/villacarrillo-weather/internal/weather"
)

var validate = validator.New()

// ErrorHandler renders every handler error as the JSON error envelope. It is
// installed as the fiber app's ErrorHandler so routes only return errors and
// never shape error bodies themselves.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}

// StationInfo describes the configured station and fetch freshness, served at
// /station/info.
type StationInfo struct {
	StationID       string `json:"station_id"`
	APIConfigured   bool   `json:"api_configured"`
	AEMETConfigured bool   `json:"aemet_configured"`
	weather.StatusSnapshot
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, info StationInfo) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		current, err := service.Current(c.Context())
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   current.Observation,
			"source": current.Source,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		start, end, err := bindDateRange(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := service.History(c.Context(), start, end)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"count":  len(observations),
			"start":  start,
			"end":    end,
			"data":   observations,
		})
	})

	v1.Get("/weather/last24h", func(c *fiber.Ctx) error {
		observations, summary, err := service.Last24h(c.Context())
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status":     "success",
			"count":      len(observations),
			"data":       observations,
			"statistics": summary,
		})
	})

	v1.Get("/weather/statistics", func(c *fiber.Ctx) error {
		start, end, err := bindDateRange(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		summary, err := service.Statistics(c.Context(), start, end)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status":     "success",
			"start":      start,
			"end":        end,
			"statistics": summary,
		})
	})

	v1.Get("/weather/export", func(c *fiber.Ctx) error {
		start, end, err := bindDateRange(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		workbook, err := service.ExportRows(c.Context(), start, end)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no data found for the specified period")
			}
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   workbook,
		})
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		bulletin, err := service.Forecast(c.Context())
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   bulletin,
		})
	})

	v1.Get("/alerts", func(c *fiber.Ctx) error {
		alerts, err := service.Alerts(c.Context())
		if err != nil {
			return mapError(err)
		}
		if alerts == nil {
			alerts = []weather.Alert{}
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"count":  len(alerts),
			"data":   alerts,
		})
	})

	v1.Get("/station/info", func(c *fiber.Ctx) error {
		// Copy before filling in freshness so concurrent requests never write
		// to the shared captured struct.
		snapshot := info
		snapshot.StatusSnapshot = service.Status()
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   snapshot,
		})
	})
}

// dateRangeQuery holds the start/end query parameters shared by the history,
// statistics, and export endpoints.
type dateRangeQuery struct {
	Start string `validate:"required,len=8,numeric"`
	End   string `validate:"required,len=8,numeric"`
}

// bindDateRange parses ?start=YYYYMMDD&end=YYYYMMDD into a closed UTC window
// covering whole days: start 00:00:00 through end 23:59:59.
func bindDateRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	q := dateRangeQuery{
		Start: c.Query("start"),
		End:   c.Query("end"),
	}
	if err := validate.Struct(q); err != nil {
		return time.Time{}, time.Time{}, errors.New("start and end are required in YYYYMMDD format")
	}

	start, err := time.ParseInLocation("20060102", q.Start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start date; use YYYYMMDD")
	}
	end, err := time.ParseInLocation("20060102", q.End, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end date; use YYYYMMDD")
	}

	return start, end.Add(24*time.Hour - time.Second), nil
}

// mapError converts the service error taxonomy into HTTP status codes.
func mapError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidRange), errors.Is(err, weather.ErrRangeTooWide):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no weather data available")
	case errors.Is(err, weather.ErrStoreUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "observation store unavailable")
	case errors.Is(err, weather.ErrProviderUnavailable), errors.Is(err, weather.ErrProviderMalformed):
		return fiber.NewError(fiber.StatusServiceUnavailable, "unable to fetch weather data")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
