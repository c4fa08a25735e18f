package graph

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

type fetchCall struct {
	id      string
	include domain.Requirements
}

// fakeRepo serves fixed track lists and strips every join that was not
// requested, the way the real stores do.
type fakeRepo struct {
	mu        sync.Mutex
	playlists map[string][]domain.Track
	tags      map[string][]domain.Track
	errs      map[string]error
	calls     []fetchCall

	started chan struct{} // receives once per fetch when set
	release chan struct{} // fetches wait on it when set
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		playlists: make(map[string][]domain.Track),
		tags:      make(map[string][]domain.Track),
		errs:      make(map[string]error),
	}
}

func (r *fakeRepo) PlaylistTracks(ctx context.Context, id string, include domain.Requirements) ([]domain.Track, error) {
	return r.fetch(ctx, id, r.playlists, include)
}

func (r *fakeRepo) TagTracks(ctx context.Context, id string, include domain.Requirements) ([]domain.Track, error) {
	return r.fetch(ctx, id, r.tags, include)
}

func (r *fakeRepo) fetch(ctx context.Context, id string, src map[string][]domain.Track, include domain.Requirements) ([]domain.Track, error) {
	r.mu.Lock()
	r.calls = append(r.calls, fetchCall{id: id, include: include})
	err := r.errs[id]
	tracks := src[id]
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Track, len(tracks))
	for i, t := range tracks {
		if !include.Artists {
			t.Artists = nil
		}
		if !include.Albums {
			t.Album = nil
		}
		if !include.Tags {
			t.Tags = nil
		}
		if !include.AudioFeatures {
			t.AudioFeatures = nil
		}
		out[i] = t
	}
	return out, nil
}

func (r *fakeRepo) Calls() []fetchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fetchCall(nil), r.calls...)
}

type fakeWriter struct {
	mu        sync.Mutex
	playlists []domain.Playlist
	assigned  map[string][]string
}

func (w *fakeWriter) SaveGeneratedPlaylist(_ context.Context, p domain.Playlist) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.playlists = append(w.playlists, p)
	return nil
}

func (w *fakeWriter) AssignTag(_ context.Context, tagID string, ids []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.assigned == nil {
		w.assigned = make(map[string][]string)
	}
	w.assigned[tagID] = append(w.assigned[tagID], ids...)
	return nil
}

func track(id string, danceability *float64) domain.Track {
	t := domain.Track{
		ID:      id,
		Name:    "Track " + id,
		Artists: []domain.Artist{{ID: "a-" + id, Name: "Artist " + id}},
		Album:   &domain.Album{ID: "al-" + id, Name: "Album", ReleaseDate: "2001-05-01"},
	}
	if danceability != nil {
		t.AudioFeatures = &domain.AudioFeatures{Danceability: danceability}
	}
	return t
}

func ids(tracks []domain.Track) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

// fivePlaylist is five tracks, two of which lack danceability.
func fivePlaylist() []domain.Track {
	partial := track("t5", nil)
	partial.AudioFeatures = &domain.AudioFeatures{Energy: domain.Float(0.7)}
	return []domain.Track{
		track("t1", domain.Float(0.9)),
		track("t2", domain.Float(0.3)),
		track("t3", domain.Float(0.5)),
		track("t4", nil),
		partial,
	}
}
