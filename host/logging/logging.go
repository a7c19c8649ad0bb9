// Package logging builds the zerolog logger used across the host.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables that override the configured values
const (
	EnvLevel  = "SIMPIT_LOG_LEVEL"
	EnvFormat = "SIMPIT_LOG_FORMAT"
)

// Format selects the log encoding
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config holds logger settings
type Config struct {
	Level  string
	Format string
}

// DefaultConfig returns info level console output
func DefaultConfig() Config {
	return Config{Level: "info", Format: string(FormatConsole)}
}

// ParseLevel accepts zerolog level names; empty means info
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ParseFormat accepts "console" or "json"; empty means console
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q", s)
	}
}

// ApplyEnv returns cfg with SIMPIT_LOG_LEVEL and SIMPIT_LOG_FORMAT applied
func ApplyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormat)); v != "" {
		cfg.Format = v
	}
	return cfg
}

// New builds a logger writing to w and installs it as the zerolog global
func New(app string, cfg Config, w io.Writer) (zerolog.Logger, error) {
	cfg = ApplyEnv(cfg)

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return zerolog.Nop(), err
	}

	if w == nil {
		w = os.Stdout
	}
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}
