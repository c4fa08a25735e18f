package ports

import (
	"context"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// TrackRepository is the single fetch a source node issues against the
// library. Implementations must populate exactly the joins requested in
// include: Artists, Album, Tags and AudioFeatures stay nil/empty when not
// requested. AudioFeatures may also be nil when requested but not stored.
type TrackRepository interface {
	PlaylistTracks(ctx context.Context, playlistID string, include domain.Requirements) ([]domain.Track, error)
	TagTracks(ctx context.Context, tagID string, include domain.Requirements) ([]domain.Track, error)
}

// TagCatalog lists the tags currently known to the library.
type TagCatalog interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
}

// PlaylistWriter persists playlists produced by output nodes.
type PlaylistWriter interface {
	SaveGeneratedPlaylist(ctx context.Context, p domain.Playlist) error
}

// TagWriter persists tag assignments produced by output nodes.
type TagWriter interface {
	AssignTag(ctx context.Context, tagID string, trackIDs []string) error
}

// GraphRepository stores graph definitions.
type GraphRepository interface {
	GetGraph(ctx context.Context, id string) (domain.GraphDefinition, error)
	SaveGraph(ctx context.Context, def domain.GraphDefinition) error
	ListGraphs(ctx context.Context) ([]domain.GraphDefinition, error)
}
