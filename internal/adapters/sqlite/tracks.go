package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// scope selects (track_id, position) rows for one source.
type scope struct {
	query string
	arg   string
}

// PlaylistTracks returns the playlist's tracks in playlist order with
// exactly the joins requested in include.
func (a *Adapter) PlaylistTracks(ctx context.Context, playlistID string, include domain.Requirements) ([]domain.Track, error) {
	var exists int
	err := a.db.QueryRowContext(ctx, "SELECT 1 FROM playlists WHERE id = ?", playlistID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}
	return a.loadTracks(ctx, scope{
		query: "SELECT track_id, position FROM playlist_tracks WHERE playlist_id = ?",
		arg:   playlistID,
	}, include)
}

// TagTracks returns every track carrying tagID, ordered by name, with
// exactly the joins requested in include.
func (a *Adapter) TagTracks(ctx context.Context, tagID string, include domain.Requirements) ([]domain.Track, error) {
	return a.loadTracks(ctx, scope{
		query: "SELECT track_id, 0 AS position FROM track_tags WHERE tag_id = ?",
		arg:   tagID,
	}, include)
}

// loadTracks runs one base query plus one query per requested join.
func (a *Adapter) loadTracks(ctx context.Context, s scope, include domain.Requirements) ([]domain.Track, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT t.id, t.name, IFNULL(t.duration_ms, 0), IFNULL(t.isrc, '')
		FROM tracks t
		JOIN (`+s.query+`) s ON s.track_id = t.id
		ORDER BY s.position, t.name, t.id
	`, s.arg)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	defer rows.Close()

	tracks := []domain.Track{}
	index := make(map[string]int)
	for rows.Next() {
		var t domain.Track
		if err := rows.Scan(&t.ID, &t.Name, &t.DurationMs, &t.ISRC); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		index[t.ID] = len(tracks)
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	if len(tracks) == 0 {
		return tracks, nil
	}

	inScope := "(SELECT track_id FROM (" + s.query + "))"
	if include.Artists {
		if err := a.joinArtists(ctx, inScope, s.arg, tracks, index); err != nil {
			return nil, err
		}
	}
	if include.Albums {
		if err := a.joinAlbums(ctx, inScope, s.arg, tracks, index); err != nil {
			return nil, err
		}
	}
	if include.Tags {
		if err := a.joinTags(ctx, inScope, s.arg, tracks, index); err != nil {
			return nil, err
		}
	}
	if include.AudioFeatures {
		if err := a.joinFeatures(ctx, inScope, s.arg, tracks, index); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

func (a *Adapter) joinArtists(ctx context.Context, inScope, arg string, tracks []domain.Track, index map[string]int) error {
	rows, err := a.db.QueryContext(ctx, `
		SELECT ta.track_id, ar.id, ar.name
		FROM track_artists ta
		JOIN artists ar ON ar.id = ta.artist_id
		WHERE ta.track_id IN `+inScope+`
		ORDER BY ta.track_id, ta.position
	`, arg)
	if err != nil {
		return fmt.Errorf("failed to load artists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID string
		var ar domain.Artist
		if err := rows.Scan(&trackID, &ar.ID, &ar.Name); err != nil {
			return fmt.Errorf("failed to scan artist: %w", err)
		}
		if i, ok := index[trackID]; ok {
			tracks[i].Artists = append(tracks[i].Artists, ar)
		}
	}
	return rows.Err()
}

func (a *Adapter) joinAlbums(ctx context.Context, inScope, arg string, tracks []domain.Track, index map[string]int) error {
	rows, err := a.db.QueryContext(ctx, `
		SELECT t.id, al.id, al.name, IFNULL(al.release_date, '')
		FROM tracks t
		JOIN albums al ON al.id = t.album_id
		WHERE t.id IN `+inScope, arg)
	if err != nil {
		return fmt.Errorf("failed to load albums: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID string
		var al domain.Album
		if err := rows.Scan(&trackID, &al.ID, &al.Name, &al.ReleaseDate); err != nil {
			return fmt.Errorf("failed to scan album: %w", err)
		}
		if i, ok := index[trackID]; ok {
			album := al
			tracks[i].Album = &album
		}
	}
	return rows.Err()
}

// joinTags returns references to deleted tags with their id only.
func (a *Adapter) joinTags(ctx context.Context, inScope, arg string, tracks []domain.Track, index map[string]int) error {
	rows, err := a.db.QueryContext(ctx, `
		SELECT tt.track_id, tt.tag_id, IFNULL(tg.name, ''), IFNULL(tg.grp, '')
		FROM track_tags tt
		LEFT JOIN tags tg ON tg.id = tt.tag_id
		WHERE tt.track_id IN `+inScope+`
		ORDER BY tt.track_id, tt.tag_id
	`, arg)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID string
		var tag domain.Tag
		if err := rows.Scan(&trackID, &tag.ID, &tag.Name, &tag.Group); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if i, ok := index[trackID]; ok {
			tracks[i].Tags = append(tracks[i].Tags, tag)
		}
	}
	return rows.Err()
}

func (a *Adapter) joinFeatures(ctx context.Context, inScope, arg string, tracks []domain.Track, index map[string]int) error {
	rows, err := a.db.QueryContext(ctx, `
		SELECT track_id, acousticness, danceability, energy, instrumentalness,
			liveness, speechiness, valence, loudness, tempo, musical_key, mode
		FROM audio_features
		WHERE track_id IN `+inScope, arg)
	if err != nil {
		return fmt.Errorf("failed to load audio features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID string
		var ac, da, en, in, li, sp, va, lo, te sql.NullFloat64
		var key, mode sql.NullInt64
		if err := rows.Scan(&trackID, &ac, &da, &en, &in, &li, &sp, &va, &lo, &te, &key, &mode); err != nil {
			return fmt.Errorf("failed to scan audio features: %w", err)
		}
		i, ok := index[trackID]
		if !ok {
			continue
		}
		tracks[i].AudioFeatures = &domain.AudioFeatures{
			Acousticness:     nullFloat(ac),
			Danceability:     nullFloat(da),
			Energy:           nullFloat(en),
			Instrumentalness: nullFloat(in),
			Liveness:         nullFloat(li),
			Speechiness:      nullFloat(sp),
			Valence:          nullFloat(va),
			Loudness:         nullFloat(lo),
			Tempo:            nullFloat(te),
			Key:              nullInt(key),
			Mode:             nullInt(mode),
		}
	}
	return rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
