package spotify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

const playlistPageSize = 100

// PlaylistTracks walks every page of a playlist and, when requested, joins
// audio features in batches. Spotify has no notion of user tags, so a Tags
// join yields tracks without tags.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, include domain.Requirements) ([]domain.Track, error) {
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", c.baseURL, url.PathEscape(playlistID), playlistPageSize)

	var wire []spotifyTrack
	for next != "" {
		var page playlistTracksPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, err)
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				c.logger.Debug("skipping unavailable playlist item", "playlist", playlistID)
				continue
			}
			wire = append(wire, *item.Track)
		}
		next = page.Next
	}

	var features map[string]*spotifyAudioFeatures
	if include.AudioFeatures {
		ids := make([]string, len(wire))
		for i, t := range wire {
			ids[i] = t.ID
		}
		var err error
		features, err = c.audioFeatures(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, err)
		}
	}

	tracks := make([]domain.Track, len(wire))
	for i, t := range wire {
		tracks[i] = mapTrackToDomain(t, include, features[t.ID])
	}
	c.logger.Info("fetched playlist tracks", "playlist", playlistID, "tracks", len(tracks))
	return tracks, nil
}

// TagTracks is not available remotely: tags live in the local library.
func (c *Client) TagTracks(context.Context, string, domain.Requirements) ([]domain.Track, error) {
	return nil, ports.UnsupportedJoinError{Join: "tags"}
}
