// Package app wires the adapters and the engine from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewilliams-labs/songtagger/internal/adapters/spotify"
	"github.com/ewilliams-labs/songtagger/internal/adapters/sqlite"
	"github.com/ewilliams-labs/songtagger/internal/config"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
	"github.com/ewilliams-labs/songtagger/internal/core/services"
)

// App holds the wired components shared by the entrypoints.
type App struct {
	Store     *sqlite.Adapter
	Tracks    ports.TrackRepository
	Driver    *graph.Driver
	Generator *services.Generator
	Logger    *slog.Logger
}

// Open builds the App. The SQLite store always holds graphs, tags and
// generated playlists; storage.driver selects where source nodes read
// tracks from.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := sqlite.NewAdapter(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("app: open library: %w", err)
	}

	var tracks ports.TrackRepository
	switch cfg.Storage.Driver {
	case "sqlite":
		tracks = store
	case "spotify":
		tracks = spotify.NewClientWithCredentials(ctx, spotify.Credentials{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			TokenURL:     cfg.Spotify.TokenURL,
		}, cfg.Spotify.BaseURL,
			spotify.WithRetry(cfg.Spotify.MaxRetries, time.Duration(cfg.Spotify.RetryBackoffMs)*time.Millisecond),
			spotify.WithLogger(logger.With("adapter", "spotify")),
		)
	default:
		_ = store.Close()
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}

	env := graph.Env{
		Tracks:    tracks,
		Playlists: store,
		Tags:      store,
		Logger:    logger,
	}
	driver := graph.NewDriver(env, graph.WithWorkers(cfg.Engine.Workers))
	logger.Info("library opened", "path", cfg.Storage.SQLitePath, "tracks_from", cfg.Storage.Driver)

	return &App{
		Store:     store,
		Tracks:    tracks,
		Driver:    driver,
		Generator: services.NewGenerator(store, store, driver, logger),
		Logger:    logger,
	}, nil
}

// Close releases the library.
func (a *App) Close() error {
	return a.Store.Close()
}
