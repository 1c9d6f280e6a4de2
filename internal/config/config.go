// Package config loads schemapack runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/Neumenon/schemapack/internal/logging"
	"github.com/Neumenon/schemapack/schemapack"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "SCHEMAPACK_"

// maxBufferSize caps SCHEMAPACK_BUFFER_SIZE at 1 GiB.
const maxBufferSize = 1 << 30

// Config holds the settings shared by the schemapack binaries.
type Config struct {
	BufferSize int    `env:"BUFFER_SIZE" envDefault:"1048576"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"` // debug|info|warn|error
	LogFormat  string `env:"LOG_FORMAT"  envDefault:"text"` // text|json
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer size must be positive"))
	} else if c.BufferSize > maxBufferSize {
		errs = append(errs, fmt.Errorf("buffer size must not exceed %d", maxBufferSize))
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel returns the configured level, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, ok := parseLevel(c.LogLevel)
	if !ok {
		return slog.LevelInfo
	}
	return lvl
}

// Logger builds a logger for the configured level and format.
func (c *Config) Logger() *slog.Logger {
	return logging.New(c.SlogLevel(), c.LogFormat, nil)
}

// ModelOptions returns the model options derived from the configuration.
func (c *Config) ModelOptions() []schemapack.ModelOption {
	return []schemapack.ModelOption{schemapack.WithBufferSize(c.BufferSize)}
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
