package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the application logger. Dev runs get colorized human-readable
// output; anything else logs JSON for collection.
func New(env string, level slog.Level) *slog.Logger {
	if env == "dev" {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", "villacarrillo-weather")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("app", "villacarrillo-weather", "env", env)
}
