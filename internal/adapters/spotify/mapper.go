package spotify

import (
	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// mapTrackToDomain converts a wire track, keeping only the joins include
// asks for. features may be nil.
func mapTrackToDomain(st spotifyTrack, include domain.Requirements, features *spotifyAudioFeatures) domain.Track {
	dt := domain.Track{
		ID:         st.ID,
		Name:       st.Name,
		DurationMs: st.DurationMs,
		ISRC:       st.ExternalIDs.ISRC,
	}
	if include.Artists {
		dt.Artists = make([]domain.Artist, 0, len(st.Artists))
		for _, a := range st.Artists {
			dt.Artists = append(dt.Artists, domain.Artist{ID: a.ID, Name: a.Name})
		}
	}
	if include.Albums && st.Album.ID != "" {
		dt.Album = &domain.Album{ID: st.Album.ID, Name: st.Album.Name, ReleaseDate: st.Album.ReleaseDate}
	}
	if include.AudioFeatures && features != nil {
		dt.AudioFeatures = &domain.AudioFeatures{
			Acousticness:     features.Acousticness,
			Danceability:     features.Danceability,
			Energy:           features.Energy,
			Instrumentalness: features.Instrumentalness,
			Liveness:         features.Liveness,
			Speechiness:      features.Speechiness,
			Valence:          features.Valence,
			Loudness:         features.Loudness,
			Tempo:            features.Tempo,
			Key:              features.Key,
			Mode:             features.Mode,
		}
	}
	return dt
}
