package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seedLibrary(t *testing.T, a *Adapter) {
	t.Helper()
	ctx := context.Background()
	for _, tag := range []domain.Tag{{ID: "rock", Name: "Rock", Group: "genre"}, {ID: "gone", Name: "Gone"}} {
		if err := a.SaveTag(ctx, tag); err != nil {
			t.Fatalf("save tag: %v", err)
		}
	}
	p := domain.Playlist{
		ID:   "pl-1",
		Name: "Liked",
		Kind: domain.PlaylistLiked,
		Tracks: []domain.Track{
			{
				ID:         "t2",
				Name:       "Second",
				DurationMs: 200000,
				ISRC:       "ISRC-2",
				Artists:    []domain.Artist{{ID: "ar1", Name: "Artist A"}, {ID: "ar2", Name: "Artist B"}},
				Album:      &domain.Album{ID: "al1", Name: "Album", ReleaseDate: "1999-02-01"},
				Tags:       []domain.Tag{{ID: "rock"}, {ID: "gone"}},
				AudioFeatures: &domain.AudioFeatures{
					Danceability: domain.Float(0.61),
					Loudness:     domain.Float(-7.5),
				},
			},
			{
				ID:      "t1",
				Name:    "First",
				Artists: []domain.Artist{{ID: "ar1", Name: "Artist A"}},
			},
		},
	}
	if err := a.SaveLibraryPlaylist(ctx, p); err != nil {
		t.Fatalf("save playlist: %v", err)
	}
	if err := a.DeleteTag(ctx, "gone"); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
}

func TestAdapter_PlaylistTracks_Scope(t *testing.T) {
	tests := []struct {
		name    string
		include domain.Requirements
		check   func(t *testing.T, tracks []domain.Track)
	}{
		{
			name:    "no joins",
			include: domain.Requirements{},
			check: func(t *testing.T, tracks []domain.Track) {
				if tracks[0].ISRC != "ISRC-2" || tracks[0].DurationMs != 200000 {
					t.Fatalf("base columns not round-tripped: %+v", tracks[0])
				}
				for _, tr := range tracks {
					if tr.Artists != nil || tr.Album != nil || tr.Tags != nil || tr.AudioFeatures != nil {
						t.Fatalf("unrequested join populated: %+v", tr)
					}
				}
			},
		},
		{
			name:    "audio features only",
			include: domain.Requirements{AudioFeatures: true},
			check: func(t *testing.T, tracks []domain.Track) {
				f := tracks[0].AudioFeatures
				if f == nil {
					t.Fatalf("features missing on %s", tracks[0].ID)
				}
				if got, ok := f.DanceabilityPercent(); !ok || got != 61 {
					t.Fatalf("danceability: got (%d, %v)", got, ok)
				}
				if f.Energy != nil {
					t.Fatalf("energy was never stored, got %v", *f.Energy)
				}
				if tracks[1].AudioFeatures != nil {
					t.Fatalf("track without snapshot must have nil features")
				}
				if tracks[0].Artists != nil || tracks[0].Album != nil {
					t.Fatalf("unrequested join populated: %+v", tracks[0])
				}
			},
		},
		{
			name:    "artists and albums",
			include: domain.Requirements{Artists: true, Albums: true},
			check: func(t *testing.T, tracks []domain.Track) {
				if got := tracks[0].ArtistNames(); got != "Artist A, Artist B" {
					t.Fatalf("artists: got %q", got)
				}
				if y, ok := tracks[0].Album.ReleaseYear(); !ok || y != 1999 {
					t.Fatalf("album year: got (%d, %v)", y, ok)
				}
				if tracks[1].Album != nil {
					t.Fatalf("track without album got one")
				}
				if tracks[0].Tags != nil || tracks[0].AudioFeatures != nil {
					t.Fatalf("unrequested join populated: %+v", tracks[0])
				}
			},
		},
		{
			name:    "tags keep orphan references",
			include: domain.Requirements{Tags: true},
			check: func(t *testing.T, tracks []domain.Track) {
				want := []domain.Tag{{ID: "gone"}, {ID: "rock", Name: "Rock", Group: "genre"}}
				got := tracks[0].Tags
				if len(got) != len(want) {
					t.Fatalf("tags: got %+v, want %+v", got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("tag %d: got %+v, want %+v", i, got[i], want[i])
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t)
			seedLibrary(t, a)

			tracks, err := a.PlaylistTracks(context.Background(), "pl-1", tt.include)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tracks) != 2 || tracks[0].ID != "t2" || tracks[1].ID != "t1" {
				t.Fatalf("playlist order not preserved: %+v", tracks)
			}
			tt.check(t, tracks)
		})
	}
}

func TestAdapter_PlaylistTracks_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.PlaylistTracks(context.Background(), "missing", domain.Requirements{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdapter_TagTracksAndAssign(t *testing.T) {
	a := newTestAdapter(t)
	seedLibrary(t, a)
	ctx := context.Background()

	if err := a.AssignTag(ctx, "rock", []string{"t1", "t2"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	tracks, err := a.TagTracks(ctx, "rock", domain.Requirements{})
	if err != nil {
		t.Fatalf("tag tracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Name != "First" || tracks[1].Name != "Second" {
		t.Fatalf("expected tracks ordered by name, got %+v", tracks)
	}

	empty, err := a.TagTracks(ctx, "nobody", domain.Requirements{Tags: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no tracks, got %d", len(empty))
	}

	if err := a.AssignTag(ctx, "", []string{"t1"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAdapter_SaveGeneratedPlaylist(t *testing.T) {
	a := newTestAdapter(t)
	seedLibrary(t, a)
	ctx := context.Background()

	gen := domain.Playlist{ID: "gen-1", Name: "Mix", Tracks: []domain.Track{{ID: "t1"}, {ID: "t2"}}}
	if err := a.SaveGeneratedPlaylist(ctx, gen); err != nil {
		t.Fatalf("save generated: %v", err)
	}
	// A second save replaces the membership.
	gen.Tracks = []domain.Track{{ID: "t2"}}
	if err := a.SaveGeneratedPlaylist(ctx, gen); err != nil {
		t.Fatalf("save generated: %v", err)
	}

	got, err := a.GetPlaylist(ctx, "gen-1")
	if err != nil {
		t.Fatalf("get playlist: %v", err)
	}
	if got.Kind != domain.PlaylistGenerated {
		t.Fatalf("kind: got %q", got.Kind)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].Name != "Second" {
		t.Fatalf("tracks: got %+v", got.Tracks)
	}

	all, err := a.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("list playlists: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(all))
	}
}

func TestAdapter_Graphs(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.GetGraph(ctx, "g1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := a.SaveGraph(ctx, domain.GraphDefinition{Name: "no id"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	def := domain.GraphDefinition{
		ID:   "g1",
		Name: "Dance",
		Nodes: []domain.NodeDefinition{
			{Key: "src", Kind: "playlist_source", Config: map[string]any{"playlist_id": "pl-1"}},
			{Key: "lim", Kind: "limit", Config: map[string]any{"count": 5}},
		},
		Edges: []domain.EdgeDefinition{{From: "src", To: "lim"}},
	}
	if err := a.SaveGraph(ctx, def); err != nil {
		t.Fatalf("save graph: %v", err)
	}
	def.Name = "Dance v2"
	if err := a.SaveGraph(ctx, def); err != nil {
		t.Fatalf("update graph: %v", err)
	}

	got, err := a.GetGraph(ctx, "g1")
	if err != nil {
		t.Fatalf("get graph: %v", err)
	}
	if got.Name != "Dance v2" || len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Fatalf("unexpected graph: %+v", got)
	}
	if got.Nodes[1].Config["count"] != float64(5) {
		t.Fatalf("config: got %#v", got.Nodes[1].Config)
	}

	list, err := a.ListGraphs(ctx)
	if err != nil {
		t.Fatalf("list graphs: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 graph, got %d", len(list))
	}
}
