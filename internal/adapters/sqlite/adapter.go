// Package sqlite provides a SQLite-backed implementation of the library and
// graph repository ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// Adapter implements the repository ports for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if storagePath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// GetPlaylist loads playlist metadata and its ordered tracks without any
// optional joins.
func (a *Adapter) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	var p domain.Playlist
	var kind string
	row := a.db.QueryRowContext(ctx, "SELECT id, name, kind FROM playlists WHERE id = ?", id)
	if err := row.Scan(&p.ID, &p.Name, &kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Playlist{}, domain.ErrNotFound
		}
		return domain.Playlist{}, fmt.Errorf("failed to load playlist: %w", err)
	}
	p.Kind = domain.PlaylistKind(kind)

	tracks, err := a.PlaylistTracks(ctx, id, domain.Requirements{})
	if err != nil {
		return domain.Playlist{}, err
	}
	p.Tracks = tracks
	return p, nil
}

// ListPlaylists returns playlist metadata ordered by name. Tracks are not
// loaded.
func (a *Adapter) ListPlaylists(ctx context.Context) ([]domain.Playlist, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, name, kind FROM playlists ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	out := []domain.Playlist{}
	for rows.Next() {
		var p domain.Playlist
		var kind string
		if err := rows.Scan(&p.ID, &p.Name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		p.Kind = domain.PlaylistKind(kind)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	return out, nil
}

// GetGraph loads a stored graph definition.
func (a *Adapter) GetGraph(ctx context.Context, id string) (domain.GraphDefinition, error) {
	var raw string
	row := a.db.QueryRowContext(ctx, "SELECT definition FROM graphs WHERE id = ?", id)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GraphDefinition{}, domain.ErrNotFound
		}
		return domain.GraphDefinition{}, fmt.Errorf("failed to load graph: %w", err)
	}
	var def domain.GraphDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return domain.GraphDefinition{}, fmt.Errorf("failed to decode graph %s: %w", id, err)
	}
	return def, nil
}

// SaveGraph creates or replaces a graph definition.
func (a *Adapter) SaveGraph(ctx context.Context, def domain.GraphDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: graph id is required", domain.ErrInvalidArgument)
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO graphs (id, name, definition) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			definition=excluded.definition,
			updated_at=CURRENT_TIMESTAMP
	`, def.ID, def.Name, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// ListGraphs returns every stored definition ordered by name.
func (a *Adapter) ListGraphs(ctx context.Context) ([]domain.GraphDefinition, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, definition FROM graphs ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer rows.Close()

	out := []domain.GraphDefinition{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		var def domain.GraphDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, fmt.Errorf("failed to decode graph %s: %w", id, err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate graphs: %w", err)
	}
	return out, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		release_date TEXT
	);

	CREATE TABLE IF NOT EXISTS artists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_ms INTEGER,
		isrc TEXT,
		album_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS track_artists (
		track_id TEXT NOT NULL,
		artist_id TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (track_id, artist_id)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grp TEXT
	);

	-- tag_id is not a foreign key: deleting a tag leaves its references
	-- behind for the engine to reconcile.
	CREATE TABLE IF NOT EXISTS track_tags (
		track_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (track_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS audio_features (
		track_id TEXT PRIMARY KEY,
		acousticness REAL,
		danceability REAL,
		energy REAL,
		instrumentalness REAL,
		liveness REAL,
		speechiness REAL,
		valence REAL,
		loudness REAL,
		tempo REAL,
		musical_key INTEGER,
		mode INTEGER
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'liked',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, track_id),
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS graphs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		definition TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_track_tags_tag ON track_tags(tag_id);
	`
	_, err := a.db.Exec(query)
	return err
}
