package spotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ewilliams-labs/songtagger/internal/adapters/spotify"
	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

func quiet() spotify.Option {
	return spotify.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func trackJSON(id, name string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"duration_ms":  200000,
		"artists":      []map[string]any{{"id": "a-" + id, "name": "Artist " + id}},
		"album":        map[string]any{"id": "al-" + id, "name": "Album", "release_date": "2001-05-01"},
		"external_ids": map[string]any{"isrc": "ISRC-" + id},
	}
}

// newLibraryServer serves a two page playlist "p1" (t1, t2 | null, t3) and
// audio features for t1 and t3 only.
func newLibraryServer(t *testing.T, featureCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/playlists/p1/tracks" && r.URL.Query().Get("offset") == "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"track": trackJSON("t1", "One")}, {"track": trackJSON("t2", "Two")}},
				"next":  ts.URL + "/playlists/p1/tracks?offset=2",
			})
		case r.URL.Path == "/playlists/p1/tracks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"track": nil}, {"track": trackJSON("t3", "Three")}},
				"next":  nil,
			})
		case r.URL.Path == "/audio-features":
			featureCalls.Add(1)
			if got := r.URL.Query().Get("ids"); got != "t1,t2,t3" {
				t.Errorf("audio-features ids: got %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"audio_features": []any{
					map[string]any{"id": "t1", "danceability": 0.8, "energy": 0, "loudness": -6.5, "key": 5},
					nil,
					map[string]any{"id": "t3", "danceability": 0.4},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestPlaylistTracks(t *testing.T) {
	tests := []struct {
		name         string
		include      domain.Requirements
		wantFeatures bool
	}{
		{name: "no joins", include: domain.Requirements{}},
		{name: "artists and albums", include: domain.Requirements{Artists: true, Albums: true}},
		{name: "audio features", include: domain.Requirements{AudioFeatures: true}, wantFeatures: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var featureCalls atomic.Int32
			ts := newLibraryServer(t, &featureCalls)
			client := spotify.NewClient(ts.Client(), ts.URL, quiet())

			tracks, err := client.PlaylistTracks(context.Background(), "p1", tc.include)
			if err != nil {
				t.Fatalf("PlaylistTracks: %v", err)
			}
			var ids []string
			for _, tr := range tracks {
				ids = append(ids, tr.ID)
			}
			if strings.Join(ids, ",") != "t1,t2,t3" {
				t.Fatalf("tracks: got %v, want [t1 t2 t3]", ids)
			}

			first := tracks[0]
			if first.Name != "One" || first.ISRC != "ISRC-t1" || first.DurationMs != 200000 {
				t.Errorf("base fields: got %+v", first)
			}
			if (len(first.Artists) > 0) != tc.include.Artists {
				t.Errorf("artists loaded = %v, requested %v", len(first.Artists) > 0, tc.include.Artists)
			}
			if (first.Album != nil) != tc.include.Albums {
				t.Errorf("album loaded = %v, requested %v", first.Album != nil, tc.include.Albums)
			}
			if tc.include.Albums {
				if year, ok := first.Album.ReleaseYear(); !ok || year != 2001 {
					t.Errorf("release year: got %d %v", year, ok)
				}
			}

			if !tc.wantFeatures {
				if featureCalls.Load() != 0 {
					t.Fatalf("features must not be requested when not included")
				}
				for _, tr := range tracks {
					if tr.AudioFeatures != nil {
						t.Fatalf("track %s has features without the join", tr.ID)
					}
				}
				return
			}
			if featureCalls.Load() != 1 {
				t.Fatalf("expected one batched features call, got %d", featureCalls.Load())
			}
			if p, ok := first.AudioFeatures.DanceabilityPercent(); !ok || p != 80 {
				t.Errorf("t1 danceability: got %d %v", p, ok)
			}
			if p, ok := first.AudioFeatures.EnergyPercent(); !ok || p != 0 {
				t.Errorf("t1 energy: measured zero must be kept, got %d %v", p, ok)
			}
			if _, ok := first.AudioFeatures.ValencePercent(); ok {
				t.Errorf("t1 valence should be undefined")
			}
			if tracks[1].AudioFeatures != nil {
				t.Errorf("t2 has no analysis and should keep nil features")
			}
		})
	}
}

func TestPlaylistTracks_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/playlists/locked/tracks":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	client := spotify.NewClient(ts.Client(), ts.URL, quiet(), spotify.WithRetry(1, time.Millisecond))

	if _, err := client.PlaylistTracks(context.Background(), "missing", domain.Requirements{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := client.PlaylistTracks(context.Background(), "locked", domain.Requirements{})
	var se *spotify.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected StatusError 401, got %v", err)
	}
	if _, err := client.TagTracks(context.Background(), "rock", domain.Requirements{}); !errors.Is(err, ports.ErrUnsupportedJoin) {
		t.Fatalf("expected ErrUnsupportedJoin, got %v", err)
	}
}

func TestPlaylistTracks_FeaturesForbidden(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio-features" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = fmt.Fprintf(w, `{"items":[{"track":{"id":"t1","name":"One"}}],"next":null}`)
	}))
	defer ts.Close()
	client := spotify.NewClient(ts.Client(), ts.URL, quiet())

	tracks, err := client.PlaylistTracks(context.Background(), "p1", domain.Requirements{AudioFeatures: true})
	if err != nil {
		t.Fatalf("PlaylistTracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].AudioFeatures != nil {
		t.Fatalf("tracks: got %+v", tracks)
	}
}

func TestNewClientWithCredentials(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected token request: %v %v", r.Form, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"items":[],"next":null}`)
	}))
	defer apiSrv.Close()

	client := spotify.NewClientWithCredentials(context.Background(), spotify.Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokenSrv.URL,
	}, apiSrv.URL, quiet())

	tracks, err := client.PlaylistTracks(context.Background(), "p1", domain.Requirements{})
	if err != nil {
		t.Fatalf("PlaylistTracks: %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected empty playlist, got %d tracks", len(tracks))
	}
}
