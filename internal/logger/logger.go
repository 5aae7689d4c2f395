// Package logger configures the process logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/config"
)

// Setup builds a zerolog.Logger from the logger section of the config.
// Console mode uses human-readable output; otherwise lines are JSON.
func Setup(cfg config.LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger for tests and optional components.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
