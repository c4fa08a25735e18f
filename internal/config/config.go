// Package config loads songtagger settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener settings.
type Server struct {
	Addr                     string `toml:"addr"`
	ReadHeaderTimeoutSeconds int    `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `toml:"shutdown_timeout_seconds"`
}

// Storage selects the library backend.
type Storage struct {
	Driver     string `toml:"driver"` // sqlite or spotify
	SQLitePath string `toml:"sqlite_path"`
}

// Spotify contains Web API credentials and retry behaviour.
type Spotify struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	BaseURL        string `toml:"base_url"`
	TokenURL       string `toml:"token_url"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMs int    `toml:"retry_backoff_ms"`
}

// Engine tunes graph evaluation. Finished background runs stay queryable
// for RunRetentionSeconds, and at most RetainRuns of them are kept.
type Engine struct {
	Workers             int `toml:"workers"`
	RunTimeoutSeconds   int `toml:"run_timeout_seconds"`
	QueueSize           int `toml:"queue_size"`
	RunWorkers          int `toml:"run_workers"`
	RunRetentionSeconds int `toml:"run_retention_seconds"`
	RetainRuns          int `toml:"retain_runs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"` // text or json
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	Spotify Spotify `toml:"spotify"`
	Engine  Engine  `toml:"engine"`
	Logging Logging `toml:"logging"`
}

// Load reads path (if it exists), applies environment overrides, then
// normalizes and validates the result. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with the process environment. The
// SPOTIFY_* and STORAGE_DRIVER names are kept for existing deployments.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	str("SPOTIFY_BASE_URL", &c.Spotify.BaseURL)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SONGTAGGER_DB", &c.Storage.SQLitePath)
	str("SONGTAGGER_ADDR", &c.Server.Addr)
	str("SONGTAGGER_LOG_FORMAT", &c.Logging.Format)
	str("SONGTAGGER_LOG_LEVEL", &c.Logging.Level)

	for key, dst := range map[string]*int{
		"SPOTIFY_MAX_RETRIES":      &c.Spotify.MaxRetries,
		"SPOTIFY_RETRY_BACKOFF_MS": &c.Spotify.RetryBackoffMs,
		"SONGTAGGER_WORKERS":       &c.Engine.Workers,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}
