package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

const (
	KindPlaylistSource = "playlist_source"
	KindTagSource      = "tag_source"
)

// PlaylistSource fetches the tracks of one library playlist. The playlist
// id and the resolved playlist are set independently; either makes the
// source valid.
type PlaylistSource struct {
	Base
	playlistID string
	playlist   *domain.Playlist
}

// NewPlaylistSource returns a source for playlistID, which may be empty.
func NewPlaylistSource(playlistID string) *PlaylistSource {
	return &PlaylistSource{playlistID: playlistID}
}

func (s *PlaylistSource) Kind() string                       { return KindPlaylistSource }
func (s *PlaylistSource) Requirements() domain.Requirements { return domain.Requirements{} }
func (s *PlaylistSource) CanAddInput(Node) bool              { return false }

func (s *PlaylistSource) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlistID != "" || s.playlist != nil
}

// PlaylistID returns the configured id, falling back to the resolved
// playlist's id.
func (s *PlaylistSource) PlaylistID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.playlistID == "" && s.playlist != nil {
		return s.playlist.ID
	}
	return s.playlistID
}

// SetPlaylistID changes the referenced playlist and clears results forward.
func (s *PlaylistSource) SetPlaylistID(id string) {
	s.mu.Lock()
	if s.playlistID == id {
		s.mu.Unlock()
		return
	}
	s.playlistID = id
	s.mu.Unlock()
	s.changed(true)
}

// SetPlaylist installs the resolved playlist and clears results forward.
func (s *PlaylistSource) SetPlaylist(p *domain.Playlist) {
	s.mu.Lock()
	if s.playlist == p {
		s.mu.Unlock()
		return
	}
	s.playlist = p
	s.mu.Unlock()
	s.changed(true)
}

func (s *PlaylistSource) Fetch(ctx context.Context, repo ports.TrackRepository, include domain.Requirements) ([]domain.Track, error) {
	if repo == nil {
		return nil, fmt.Errorf("graph: %s: no track repository", KindPlaylistSource)
	}
	return repo.PlaylistTracks(ctx, s.PlaylistID(), include)
}

func (s *PlaylistSource) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return first(input), nil
}

// OnConnectionAdded clears the cached fetch when the newly connected
// consumer needs joins the fetch was made without.
func (s *PlaylistSource) OnConnectionAdded(_, to ID) {
	refetchIfUncovered(&s.Base, to)
}

func (s *PlaylistSource) Config() map[string]any {
	return map[string]any{"playlist_id": s.PlaylistID()}
}

func (s *PlaylistSource) Configure(cfg map[string]any) error {
	if err := checkKeys(KindPlaylistSource, cfg, "playlist_id"); err != nil {
		return err
	}
	id, ok, err := cfgString(cfg, "playlist_id")
	if err != nil {
		return err
	}
	if ok {
		s.SetPlaylistID(id)
	}
	return nil
}

// TagSource fetches every track carrying a tag.
type TagSource struct {
	Base
	tagID string
}

func NewTagSource(tagID string) *TagSource { return &TagSource{tagID: tagID} }

func (s *TagSource) Kind() string                       { return KindTagSource }
func (s *TagSource) Requirements() domain.Requirements { return domain.Requirements{} }
func (s *TagSource) CanAddInput(Node) bool              { return false }

func (s *TagSource) Valid() bool { return s.TagID() != "" }

func (s *TagSource) TagID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tagID
}

func (s *TagSource) SetTagID(id string) {
	s.mu.Lock()
	if s.tagID == id {
		s.mu.Unlock()
		return
	}
	s.tagID = id
	s.mu.Unlock()
	s.changed(true)
}

func (s *TagSource) Fetch(ctx context.Context, repo ports.TrackRepository, include domain.Requirements) ([]domain.Track, error) {
	if repo == nil {
		return nil, fmt.Errorf("graph: %s: no track repository", KindTagSource)
	}
	return repo.TagTracks(ctx, s.TagID(), include)
}

func (s *TagSource) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return first(input), nil
}

func (s *TagSource) OnConnectionAdded(_, to ID) {
	refetchIfUncovered(&s.Base, to)
}

func (s *TagSource) Config() map[string]any {
	return map[string]any{"tag_id": s.TagID()}
}

func (s *TagSource) Configure(cfg map[string]any) error {
	if err := checkKeys(KindTagSource, cfg, "tag_id"); err != nil {
		return err
	}
	id, ok, err := cfgString(cfg, "tag_id")
	if err != nil {
		return err
	}
	if ok {
		s.SetTagID(id)
	}
	return nil
}

func refetchIfUncovered(b *Base, to ID) {
	g := b.graph
	if g == nil {
		return
	}
	included, ok := g.Included(b.id)
	if !ok {
		return
	}
	if !included.Covers(g.EffectiveRequirements(to, false)) {
		g.ClearResult(b.id)
	}
}

// first returns a copy of the sole input slot.
func first(input [][]domain.Track) []domain.Track {
	if len(input) == 0 {
		return nil
	}
	return slices.Clone(input[0])
}
