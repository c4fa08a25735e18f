package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

const (
	KindPlaylistOutput  = "playlist_output"
	KindAssignTagOutput = "assign_tag_output"
)

// PlaylistOutput is a terminal that saves its input as a generated
// playlist. The playlist id is fixed when the node is created so repeated
// runs overwrite the same playlist.
type PlaylistOutput struct {
	Base
	playlistID string
	name       string
}

func NewPlaylistOutput(name string) *PlaylistOutput {
	return &PlaylistOutput{playlistID: uuid.NewString(), name: name}
}

func (o *PlaylistOutput) Kind() string                       { return KindPlaylistOutput }
func (o *PlaylistOutput) Requirements() domain.Requirements { return domain.Requirements{} }
func (o *PlaylistOutput) CanAddInput(Node) bool              { return o.singleInput() }

func (o *PlaylistOutput) Valid() bool {
	id, name := o.Target()
	return id != "" && name != ""
}

// Target returns the generated playlist's id and name.
func (o *PlaylistOutput) Target() (id, name string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.playlistID, o.name
}

func (o *PlaylistOutput) SetName(name string) {
	o.mu.Lock()
	if o.name == name {
		o.mu.Unlock()
		return
	}
	o.name = name
	o.mu.Unlock()
	o.changed(true)
}

func (o *PlaylistOutput) SetPlaylistID(id string) {
	o.mu.Lock()
	if o.playlistID == id {
		o.mu.Unlock()
		return
	}
	o.playlistID = id
	o.mu.Unlock()
	o.changed(true)
}

func (o *PlaylistOutput) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return first(input), nil
}

// Persist saves tracks as the generated playlist. Repeated tracks are
// stored once.
func (o *PlaylistOutput) Persist(ctx context.Context, env Env, tracks []domain.Track) error {
	if env.Playlists == nil {
		return fmt.Errorf("graph: %s: no playlist writer", KindPlaylistOutput)
	}
	id, name := o.Target()
	p, err := domain.NewPlaylist(id, name, domain.PlaylistGenerated)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		if err := p.AddTrack(t); err != nil && !errors.Is(err, domain.ErrDuplicateTrack) {
			return err
		}
	}
	return env.Playlists.SaveGeneratedPlaylist(ctx, *p)
}

// retainedKeys keeps the generated playlist id across definition edits that
// do not name one.
func (o *PlaylistOutput) retainedKeys() []string { return []string{"playlist_id"} }

func (o *PlaylistOutput) Config() map[string]any {
	id, name := o.Target()
	return map[string]any{"playlist_id": id, "name": name}
}

func (o *PlaylistOutput) Configure(cfg map[string]any) error {
	if err := checkKeys(KindPlaylistOutput, cfg, "playlist_id", "name"); err != nil {
		return err
	}
	id, ok, err := cfgString(cfg, "playlist_id")
	if err != nil {
		return err
	}
	if ok && id != "" {
		o.SetPlaylistID(id)
	}
	name, ok, err := cfgString(cfg, "name")
	if err != nil {
		return err
	}
	if ok {
		o.SetName(name)
	}
	return nil
}

// AssignTagOutput is a terminal that assigns a tag to every track it
// receives.
type AssignTagOutput struct {
	Base
	tagID string
}

func NewAssignTagOutput(tagID string) *AssignTagOutput { return &AssignTagOutput{tagID: tagID} }

func (o *AssignTagOutput) Kind() string                       { return KindAssignTagOutput }
func (o *AssignTagOutput) Requirements() domain.Requirements { return domain.Requirements{} }
func (o *AssignTagOutput) CanAddInput(Node) bool              { return o.singleInput() }
func (o *AssignTagOutput) Valid() bool                        { return o.TagID() != "" }

func (o *AssignTagOutput) TagID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tagID
}

func (o *AssignTagOutput) SetTagID(id string) {
	o.mu.Lock()
	if o.tagID == id {
		o.mu.Unlock()
		return
	}
	o.tagID = id
	o.mu.Unlock()
	o.changed(true)
}

func (o *AssignTagOutput) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return first(input), nil
}

func (o *AssignTagOutput) Persist(ctx context.Context, env Env, tracks []domain.Track) error {
	if env.Tags == nil {
		return fmt.Errorf("graph: %s: no tag writer", KindAssignTagOutput)
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return env.Tags.AssignTag(ctx, o.TagID(), ids)
}

func (o *AssignTagOutput) Config() map[string]any { return map[string]any{"tag_id": o.TagID()} }

func (o *AssignTagOutput) Configure(cfg map[string]any) error {
	if err := checkKeys(KindAssignTagOutput, cfg, "tag_id"); err != nil {
		return err
	}
	v, ok, err := cfgString(cfg, "tag_id")
	if err != nil {
		return err
	}
	if ok {
		o.SetTagID(v)
	}
	return nil
}
