package domain

import "errors"

var (
	ErrDuplicateTrack  = errors.New("domain: duplicate track")
	ErrNotFound        = errors.New("domain: not found")
	ErrInvalidArgument = errors.New("domain: invalid argument")
)

// PlaylistKind distinguishes playlists synced from the library from the
// ones produced by running a generation graph.
type PlaylistKind string

const (
	PlaylistLiked     PlaylistKind = "liked"
	PlaylistGenerated PlaylistKind = "generated"
)

type Playlist struct {
	ID     string
	Name   string
	Kind   PlaylistKind
	Tracks []Track
}

func NewPlaylist(id, name string, kind PlaylistKind) (*Playlist, error) {
	if id == "" || name == "" {
		return nil, ErrInvalidArgument
	}
	if kind == "" {
		kind = PlaylistLiked
	}
	return &Playlist{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Tracks: []Track{},
	}, nil
}

// AddTrack appends a track to the playlist while preventing duplicate track
// ids. If the track is already present AddTrack returns ErrDuplicateTrack.
func (p *Playlist) AddTrack(t Track) error {
	for _, ex := range p.Tracks {
		if ex.ID == t.ID {
			return ErrDuplicateTrack
		}
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}
