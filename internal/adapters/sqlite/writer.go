package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// SaveLibraryPlaylist stores a playlist together with its tracks and every
// join the tracks carry. Joins that are nil on a track are left untouched.
func (a *Adapter) SaveLibraryPlaylist(ctx context.Context, p domain.Playlist) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	for _, t := range p.Tracks {
		if err := saveTrack(ctx, tx, t); err != nil {
			return err
		}
	}
	if err := savePlaylist(ctx, tx, p); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// SaveGeneratedPlaylist replaces the membership of a generated playlist.
// Only track ids are written; the tracks themselves already live in the
// library.
func (a *Adapter) SaveGeneratedPlaylist(ctx context.Context, p domain.Playlist) error {
	p.Kind = domain.PlaylistGenerated
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := savePlaylist(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// SaveTag creates or renames a tag.
func (a *Adapter) SaveTag(ctx context.Context, tag domain.Tag) error {
	if tag.ID == "" {
		return fmt.Errorf("%w: tag id is required", domain.ErrInvalidArgument)
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, grp) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, grp=excluded.grp
	`, tag.ID, tag.Name, tag.Group)
	if err != nil {
		return fmt.Errorf("failed to save tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag definition. Assignments stay behind as orphans.
func (a *Adapter) DeleteTag(ctx context.Context, id string) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return nil
}

// Tags lists the known tags ordered by group and name.
func (a *Adapter) Tags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, name, IFNULL(grp, '') FROM tags ORDER BY grp, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	out := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Group); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return out, nil
}

// AssignTag attaches tagID to every listed track. Existing assignments are
// kept.
func (a *Adapter) AssignTag(ctx context.Context, tagID string, trackIDs []string) error {
	if tagID == "" {
		return fmt.Errorf("%w: tag id is required", domain.ErrInvalidArgument)
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO track_tags (track_id, tag_id) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range trackIDs {
		if _, err := stmt.ExecContext(ctx, id, tagID); err != nil {
			return fmt.Errorf("failed to tag track %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func savePlaylist(ctx context.Context, tx *sql.Tx, p domain.Playlist) error {
	if p.Kind == "" {
		p.Kind = domain.PlaylistLiked
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, kind) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, kind=excluded.kind
	`, p.ID, p.Name, string(p.Kind)); err != nil {
		return fmt.Errorf("failed to save playlist metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear old tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT(playlist_id, track_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range p.Tracks {
		if _, err := stmt.ExecContext(ctx, p.ID, t.ID, i); err != nil {
			return fmt.Errorf("failed to link track %s: %w", t.ID, err)
		}
	}
	return nil
}

func saveTrack(ctx context.Context, tx *sql.Tx, t domain.Track) error {
	var albumID any
	if t.Album != nil {
		albumID = t.Album.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO albums (id, name, release_date) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, release_date=excluded.release_date
		`, t.Album.ID, t.Album.Name, t.Album.ReleaseDate); err != nil {
			return fmt.Errorf("failed to save album %s: %w", t.Album.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (id, name, duration_ms, isrc, album_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			duration_ms=excluded.duration_ms,
			isrc=excluded.isrc,
			album_id=COALESCE(excluded.album_id, tracks.album_id)
	`, t.ID, t.Name, t.DurationMs, t.ISRC, albumID); err != nil {
		return fmt.Errorf("failed to save track %s: %w", t.ID, err)
	}

	if t.Artists != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM track_artists WHERE track_id = ?", t.ID); err != nil {
			return fmt.Errorf("failed to clear artists of %s: %w", t.ID, err)
		}
		for i, ar := range t.Artists {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO artists (id, name) VALUES (?, ?)
				ON CONFLICT(id) DO UPDATE SET name=excluded.name
			`, ar.ID, ar.Name); err != nil {
				return fmt.Errorf("failed to save artist %s: %w", ar.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO track_artists (track_id, artist_id, position) VALUES (?, ?, ?)",
				t.ID, ar.ID, i); err != nil {
				return fmt.Errorf("failed to link artist %s: %w", ar.ID, err)
			}
		}
	}

	for _, tag := range t.Tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO track_tags (track_id, tag_id) VALUES (?, ?)", t.ID, tag.ID); err != nil {
			return fmt.Errorf("failed to tag track %s: %w", t.ID, err)
		}
	}

	if f := t.AudioFeatures; f != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audio_features (
				track_id, acousticness, danceability, energy, instrumentalness,
				liveness, speechiness, valence, loudness, tempo, musical_key, mode
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(track_id) DO UPDATE SET
				acousticness=excluded.acousticness,
				danceability=excluded.danceability,
				energy=excluded.energy,
				instrumentalness=excluded.instrumentalness,
				liveness=excluded.liveness,
				speechiness=excluded.speechiness,
				valence=excluded.valence,
				loudness=excluded.loudness,
				tempo=excluded.tempo,
				musical_key=excluded.musical_key,
				mode=excluded.mode
		`, t.ID,
			floatArg(f.Acousticness), floatArg(f.Danceability), floatArg(f.Energy),
			floatArg(f.Instrumentalness), floatArg(f.Liveness), floatArg(f.Speechiness),
			floatArg(f.Valence), floatArg(f.Loudness), floatArg(f.Tempo),
			intArg(f.Key), intArg(f.Mode),
		); err != nil {
			return fmt.Errorf("failed to save audio features of %s: %w", t.ID, err)
		}
	}
	return nil
}
