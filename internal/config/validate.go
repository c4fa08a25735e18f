package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Spotify.BaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.BaseURL), "/")
	if c.Engine.Workers < 1 {
		c.Engine.Workers = 1
	}
	if c.Engine.RunWorkers < 1 {
		c.Engine.RunWorkers = 1
	}
	if c.Engine.RetainRuns < 1 {
		c.Engine.RetainRuns = 1
	}
	if c.Engine.QueueSize < 1 {
		c.Engine.QueueSize = 1
	}
	if c.Spotify.MaxRetries < 0 {
		c.Spotify.MaxRetries = 0
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case "spotify":
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
			errs = append(errs, errors.New("spotify.client_id and spotify.client_secret are required for the spotify driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported value %q", c.Storage.Driver))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Engine.RunTimeoutSeconds < 0 {
		errs = append(errs, errors.New("engine.run_timeout_seconds must not be negative"))
	}
	return errors.Join(errs...)
}
