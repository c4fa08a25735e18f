package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

// Env carries the collaborators a run needs.
type Env struct {
	Tracks    ports.TrackRepository
	Playlists ports.PlaylistWriter
	Tags      ports.TagWriter
	Logger    *slog.Logger
	// Diagnose receives data-inconsistency reports. Optional.
	Diagnose func(Diagnostic)
}

// Diagnostic records an anomaly absorbed at a node boundary.
type Diagnostic struct {
	Node    ID
	Code    string
	Message string
}

const DiagUnknownTag = "unknown_tag"

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Env) diagnose(d Diagnostic) {
	if e.Diagnose != nil {
		e.Diagnose(d)
	}
}

// CalculateInputResult fills the cached input of id.
//
// It is a no-op when the input is already set, except for a source whose
// cached fetch does not cover the joins this run needs: that source is
// cleared forward and fetched again. Sources that are not valid
// stay unset; valid sources fetch once with their effective requirements.
// Other nodes gather the outputs of their inputs in order and stay unset if
// they have no inputs or any input is unset. Only collaborator failures are
// returned, as *FetchError.
func (g *Graph) CalculateInputResult(ctx context.Context, id ID, env Env, includeAll bool) error {
	g.mu.RLock()
	s, err := g.slotLocked(id)
	if err != nil {
		g.mu.RUnlock()
		return err
	}
	n, epoch, inputs := s.node, s.epoch, slices.Clone(s.inputs)
	cached, included := s.hasInput, s.included
	g.mu.RUnlock()

	log := env.logger()
	src, isSource := n.(Source)
	if cached && !isSource {
		return nil
	}

	if isSource {
		if !n.Valid() {
			log.Debug("source not configured", "node", id, "kind", n.Kind())
			return nil
		}
		include := g.EffectiveRequirements(id, includeAll)
		if cached {
			if included.Covers(include) {
				return nil
			}
			// The cached fetch lacks joins this run asks for.
			log.Debug("refetching source with wider joins", "node", id, "kind", n.Kind())
			g.ClearResult(id)
			g.mu.RLock()
			s, err := g.slotLocked(id)
			if err != nil {
				g.mu.RUnlock()
				return err
			}
			epoch = s.epoch
			g.mu.RUnlock()
		}
		start := time.Now()
		tracks, err := src.Fetch(ctx, env.Tracks, include)
		sourceFetchSeconds.WithLabelValues(n.Kind()).Observe(time.Since(start).Seconds())
		if err != nil {
			return &FetchError{Node: id, Kind: n.Kind(), Err: err}
		}
		if include.Tags {
			tracks = g.reconcileTags(id, tracks, env)
		}
		if g.storeInput(id, epoch, [][]domain.Track{tracks}, include) {
			log.Info("source fetched",
				"node", id,
				"kind", n.Kind(),
				"tracks", len(tracks),
				"artists", include.Artists,
				"tags", include.Tags,
				"albums", include.Albums,
				"audio_features", include.AudioFeatures,
			)
		}
		return nil
	}

	if len(inputs) == 0 {
		return nil
	}
	g.mu.RLock()
	gathered := make([][]domain.Track, 0, len(inputs))
	for _, in := range inputs {
		up := g.slots[in]
		if up == nil || !up.hasOutput {
			g.mu.RUnlock()
			return nil
		}
		gathered = append(gathered, up.output)
	}
	g.mu.RUnlock()

	g.storeInput(id, epoch, gathered, domain.Requirements{})
	return nil
}

// MapInputToOutput computes the cached output of id from its cached input.
// It is a no-op when the output is already set, the input is unset, or the
// node is not valid.
func (g *Graph) MapInputToOutput(ctx context.Context, id ID) error {
	g.mu.RLock()
	s, err := g.slotLocked(id)
	if err != nil {
		g.mu.RUnlock()
		return err
	}
	if s.hasOutput || !s.hasInput {
		g.mu.RUnlock()
		return nil
	}
	n, epoch, input := s.node, s.epoch, s.input
	g.mu.RUnlock()

	if !n.Valid() {
		return nil
	}
	out, err := n.MapInputToOutput(ctx, input)
	if err != nil {
		return fmt.Errorf("graph: map %s node %d: %w", n.Kind(), id, err)
	}
	if out == nil {
		out = []domain.Track{}
	}

	g.mu.Lock()
	stored := false
	if cur, err := g.slotLocked(id); err == nil && cur.epoch == epoch && cur.hasInput && !cur.hasOutput {
		cur.output, cur.hasOutput = out, true
		stored = true
	}
	g.mu.Unlock()

	if stored {
		g.emit(Event{Kind: ResultComputed, Node: id, Peer: NoID})
	}
	return nil
}

// storeInput writes a computed input unless the node was cleared after the
// computation started.
func (g *Graph) storeInput(id ID, epoch uint64, input [][]domain.Track, included domain.Requirements) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.slotLocked(id)
	if err != nil || s.epoch != epoch || s.hasInput {
		return false
	}
	s.input, s.hasInput, s.included = input, true, included
	return true
}

// reconcileTags drops tag references that are not in the known tag set and
// fills in names for the ones that are.
func (g *Graph) reconcileTags(id ID, tracks []domain.Track, env Env) []domain.Track {
	g.mu.RLock()
	known := g.knownTags
	g.mu.RUnlock()
	if known == nil {
		return tracks
	}

	out := make([]domain.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t
		if len(t.Tags) == 0 {
			continue
		}
		kept := make([]domain.Tag, 0, len(t.Tags))
		for _, tag := range t.Tags {
			k, ok := known[tag.ID]
			if !ok {
				env.logger().Warn("dropping unknown tag reference", "node", id, "track", t.ID, "tag", tag.ID)
				env.diagnose(Diagnostic{
					Node:    id,
					Code:    DiagUnknownTag,
					Message: fmt.Sprintf("track %s references unknown tag %s", t.ID, tag.ID),
				})
				continue
			}
			kept = append(kept, k)
		}
		out[i].Tags = kept
	}
	return out
}
