package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestPlaylist_AddTrack(t *testing.T) {
	tests := []struct {
		name          string
		initialTracks []Track
		toAdd         Track
		wantErr       error
		wantLen       int
	}{
		{
			name:          "adds new track successfully",
			initialTracks: []Track{},
			toAdd:         Track{ID: "t1", Name: "Song One", ISRC: "ISRC-1"},
			wantErr:       nil,
			wantLen:       1,
		},
		{
			name: "fails when adding a track already in the playlist",
			initialTracks: []Track{
				{ID: "t1", Name: "Existing"},
			},
			toAdd:   Track{ID: "t1", Name: "Existing again"},
			wantErr: ErrDuplicateTrack,
			wantLen: 1,
		},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPlaylist("pl-1", "Test Playlist", PlaylistGenerated)
			if err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
			p.Tracks = append(p.Tracks, tc.initialTracks...)

			err = p.AddTrack(tc.toAdd)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
			} else {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			}

			if got := len(p.Tracks); got != tc.wantLen {
				t.Fatalf("expected %d tracks, got %d", tc.wantLen, got)
			}

			if tc.wantErr == nil {
				last := p.Tracks[len(p.Tracks)-1]
				if !reflect.DeepEqual(last, tc.toAdd) {
					t.Fatalf("last track mismatch: want %+v, got %+v", tc.toAdd, last)
				}
			}
		})
	}
}

func TestNewPlaylist(t *testing.T) {
	if _, err := NewPlaylist("", "name", PlaylistLiked); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	p, err := NewPlaylist("pl-1", "name", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != PlaylistLiked {
		t.Fatalf("kind: got %q, want %q", p.Kind, PlaylistLiked)
	}
}

func TestAudioFeatures_Percent(t *testing.T) {
	tests := []struct {
		name     string
		features *AudioFeatures
		want     int
		wantOK   bool
	}{
		{name: "nil snapshot", features: nil, wantOK: false},
		{name: "missing attribute", features: &AudioFeatures{Energy: Float(0.4)}, wantOK: false},
		{name: "rounds half up", features: &AudioFeatures{Danceability: Float(0.505)}, want: 51, wantOK: true},
		{name: "zero is a value", features: &AudioFeatures{Danceability: Float(0)}, want: 0, wantOK: true},
		{name: "clamps above one", features: &AudioFeatures{Danceability: Float(1.2)}, want: 100, wantOK: true},
		{name: "clamps below zero", features: &AudioFeatures{Danceability: Float(-0.1)}, want: 0, wantOK: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.features.DanceabilityPercent()
			if ok != tc.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Fatalf("percent: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAlbum_ReleaseYear(t *testing.T) {
	tests := []struct {
		album  *Album
		want   int
		wantOK bool
	}{
		{album: nil},
		{album: &Album{ReleaseDate: ""}},
		{album: &Album{ReleaseDate: "19xx"}},
		{album: &Album{ReleaseDate: "1999"}, want: 1999, wantOK: true},
		{album: &Album{ReleaseDate: "2004-07-12"}, want: 2004, wantOK: true},
	}
	for _, tc := range tests {
		got, ok := tc.album.ReleaseYear()
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("ReleaseYear(%+v): got (%d, %v), want (%d, %v)", tc.album, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestRequirements_Covers(t *testing.T) {
	features := Requirements{AudioFeatures: true}
	tags := Requirements{Tags: true}

	if !AllRequirements().Covers(features) {
		t.Fatalf("all requirements must cover audio features")
	}
	if features.Covers(tags) {
		t.Fatalf("audio features must not cover tags")
	}
	if !features.Or(tags).Covers(tags) {
		t.Fatalf("union must cover both operands")
	}
	if (Requirements{}).Any() {
		t.Fatalf("empty requirements must not report Any")
	}
}
