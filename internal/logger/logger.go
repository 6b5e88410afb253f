package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-log-sentry/internal/config"
)

const serviceName = "docker_log_sentry"

func SetupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	return New(cfg, os.Stdout)
}

// New builds the service logger writing human-readable lines to out.
func New(cfg *config.LoggingConfig, out io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    out != os.Stdout,
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	return zerolog.New(consoleWriter).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Str("host", hostname).
		Logger()
}

// ParseLevel maps a configured level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
