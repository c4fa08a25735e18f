package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// Feature describes one numeric track attribute a RangeFilter or Sort can
// use. Extract reports false when the track has no value for it.
type Feature struct {
	Name     string
	Extract  func(domain.Track) (float64, bool)
	Min, Max float64
	Requires domain.Requirements
}

func percentFeature(name string, get func(*domain.AudioFeatures) (int, bool)) Feature {
	return Feature{
		Name: name,
		Extract: func(t domain.Track) (float64, bool) {
			v, ok := get(t.AudioFeatures)
			return float64(v), ok
		},
		Min:      0,
		Max:      100,
		Requires: domain.Requirements{AudioFeatures: true},
	}
}

// Features lists the attributes available to range filters and sorting,
// keyed by name.
var Features = map[string]Feature{
	"acousticness":     percentFeature("acousticness", (*domain.AudioFeatures).AcousticnessPercent),
	"danceability":     percentFeature("danceability", (*domain.AudioFeatures).DanceabilityPercent),
	"energy":           percentFeature("energy", (*domain.AudioFeatures).EnergyPercent),
	"instrumentalness": percentFeature("instrumentalness", (*domain.AudioFeatures).InstrumentalnessPercent),
	"liveness":         percentFeature("liveness", (*domain.AudioFeatures).LivenessPercent),
	"speechiness":      percentFeature("speechiness", (*domain.AudioFeatures).SpeechinessPercent),
	"valence":          percentFeature("valence", (*domain.AudioFeatures).ValencePercent),
	"loudness": {
		Name:     "loudness",
		Extract:  func(t domain.Track) (float64, bool) { return t.AudioFeatures.LoudnessDB() },
		Min:      -60,
		Max:      0,
		Requires: domain.Requirements{AudioFeatures: true},
	},
	"tempo": {
		Name:     "tempo",
		Extract:  func(t domain.Track) (float64, bool) { return t.AudioFeatures.TempoBPM() },
		Min:      0,
		Max:      250,
		Requires: domain.Requirements{AudioFeatures: true},
	},
	"year": {
		Name: "year",
		Extract: func(t domain.Track) (float64, bool) {
			y, ok := t.Album.ReleaseYear()
			return float64(y), ok
		},
		Min:      1900,
		Max:      2100,
		Requires: domain.Requirements{Albums: true},
	},
	"duration": {
		Name: "duration",
		Extract: func(t domain.Track) (float64, bool) {
			if t.DurationMs <= 0 {
				return 0, false
			}
			return float64(t.DurationMs) / 1000, true
		},
		Min: 0,
		Max: 3600,
	},
}

// FeatureNames returns the registered feature names in sorted order.
func FeatureNames() []string {
	names := make([]string, 0, len(Features))
	for n := range Features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RangeFilter keeps tracks whose feature value is defined and inside the
// inclusive [min, max] bounds. Tracks without a value never pass.
type RangeFilter struct {
	Base
	feature  Feature
	min, max float64
}

// NewRangeFilter returns a filter over the named feature with its default
// bounds.
func NewRangeFilter(feature string) (*RangeFilter, error) {
	f, ok := Features[feature]
	if !ok {
		return nil, fmt.Errorf("%w: feature %q", ErrUnknownKind, feature)
	}
	return &RangeFilter{feature: f, min: f.Min, max: f.Max}, nil
}

// MustRangeFilter is NewRangeFilter with explicit bounds for a known feature.
func MustRangeFilter(feature string, min, max float64) *RangeFilter {
	f, err := NewRangeFilter(feature)
	if err != nil {
		panic(err)
	}
	f.min, f.max = min, max
	return f
}

func (f *RangeFilter) Kind() string                       { return f.feature.Name + "_filter" }
func (f *RangeFilter) Requirements() domain.Requirements { return f.feature.Requires }
func (f *RangeFilter) CanAddInput(Node) bool              { return f.singleInput() }

func (f *RangeFilter) Valid() bool {
	lo, hi := f.Bounds()
	return lo <= hi
}

// Value extracts the filtered attribute of t.
func (f *RangeFilter) Value(t domain.Track) (float64, bool) { return f.feature.Extract(t) }

func (f *RangeFilter) Bounds() (min, max float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.min, f.max
}

func (f *RangeFilter) SetMin(v float64) {
	f.mu.Lock()
	if f.min == v {
		f.mu.Unlock()
		return
	}
	f.min = v
	f.mu.Unlock()
	f.changed(true)
}

func (f *RangeFilter) SetMax(v float64) {
	f.mu.Lock()
	if f.max == v {
		f.mu.Unlock()
		return
	}
	f.max = v
	f.mu.Unlock()
	f.changed(true)
}

func (f *RangeFilter) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	lo, hi := f.Bounds()
	return keep(input, func(t domain.Track) bool {
		v, ok := f.feature.Extract(t)
		return ok && v >= lo && v <= hi
	}), nil
}

func (f *RangeFilter) Config() map[string]any {
	lo, hi := f.Bounds()
	return map[string]any{"min": lo, "max": hi}
}

func (f *RangeFilter) Configure(cfg map[string]any) error {
	if err := checkKeys(f.Kind(), cfg, "min", "max"); err != nil {
		return err
	}
	lo, hasLo, err := cfgFloat(cfg, "min")
	if err != nil {
		return err
	}
	hi, hasHi, err := cfgFloat(cfg, "max")
	if err != nil {
		return err
	}
	if hasLo {
		f.SetMin(lo)
	}
	if hasHi {
		f.SetMax(hi)
	}
	return nil
}

const (
	KindArtistFilter   = "artist_filter"
	KindTagFilter      = "tag_filter"
	KindUntaggedFilter = "untagged_filter"
)

// ArtistFilter keeps tracks credited to an artist whose name contains the
// configured text, ignoring case.
type ArtistFilter struct {
	Base
	artist string
}

func NewArtistFilter(artist string) *ArtistFilter { return &ArtistFilter{artist: artist} }

func (f *ArtistFilter) Kind() string                       { return KindArtistFilter }
func (f *ArtistFilter) Requirements() domain.Requirements { return domain.Requirements{Artists: true} }
func (f *ArtistFilter) CanAddInput(Node) bool              { return f.singleInput() }
func (f *ArtistFilter) Valid() bool                        { return strings.TrimSpace(f.Artist()) != "" }

func (f *ArtistFilter) Artist() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.artist
}

func (f *ArtistFilter) SetArtist(name string) {
	f.mu.Lock()
	if f.artist == name {
		f.mu.Unlock()
		return
	}
	f.artist = name
	f.mu.Unlock()
	f.changed(true)
}

func (f *ArtistFilter) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	needle := strings.ToLower(strings.TrimSpace(f.Artist()))
	return keep(input, func(t domain.Track) bool {
		for _, a := range t.Artists {
			if strings.Contains(strings.ToLower(a.Name), needle) {
				return true
			}
		}
		return false
	}), nil
}

func (f *ArtistFilter) Config() map[string]any { return map[string]any{"artist": f.Artist()} }

func (f *ArtistFilter) Configure(cfg map[string]any) error {
	if err := checkKeys(KindArtistFilter, cfg, "artist"); err != nil {
		return err
	}
	v, ok, err := cfgString(cfg, "artist")
	if err != nil {
		return err
	}
	if ok {
		f.SetArtist(v)
	}
	return nil
}

// TagFilter keeps tracks that carry a tag.
type TagFilter struct {
	Base
	tagID string
}

func NewTagFilter(tagID string) *TagFilter { return &TagFilter{tagID: tagID} }

func (f *TagFilter) Kind() string                       { return KindTagFilter }
func (f *TagFilter) Requirements() domain.Requirements { return domain.Requirements{Tags: true} }
func (f *TagFilter) CanAddInput(Node) bool              { return f.singleInput() }
func (f *TagFilter) Valid() bool                        { return f.TagID() != "" }

func (f *TagFilter) TagID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tagID
}

func (f *TagFilter) SetTagID(id string) {
	f.mu.Lock()
	if f.tagID == id {
		f.mu.Unlock()
		return
	}
	f.tagID = id
	f.mu.Unlock()
	f.changed(true)
}

func (f *TagFilter) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	id := f.TagID()
	return keep(input, func(t domain.Track) bool { return t.HasTag(id) }), nil
}

func (f *TagFilter) Config() map[string]any { return map[string]any{"tag_id": f.TagID()} }

func (f *TagFilter) Configure(cfg map[string]any) error {
	if err := checkKeys(KindTagFilter, cfg, "tag_id"); err != nil {
		return err
	}
	v, ok, err := cfgString(cfg, "tag_id")
	if err != nil {
		return err
	}
	if ok {
		f.SetTagID(v)
	}
	return nil
}

// UntaggedFilter keeps tracks without any tag.
type UntaggedFilter struct {
	Base
}

func NewUntaggedFilter() *UntaggedFilter { return &UntaggedFilter{} }

func (f *UntaggedFilter) Kind() string                       { return KindUntaggedFilter }
func (f *UntaggedFilter) Requirements() domain.Requirements { return domain.Requirements{Tags: true} }
func (f *UntaggedFilter) CanAddInput(Node) bool              { return f.singleInput() }
func (f *UntaggedFilter) Valid() bool                        { return true }

func (f *UntaggedFilter) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return keep(input, func(t domain.Track) bool { return len(t.Tags) == 0 }), nil
}

func (f *UntaggedFilter) Config() map[string]any { return map[string]any{} }

func (f *UntaggedFilter) Configure(cfg map[string]any) error {
	return checkKeys(KindUntaggedFilter, cfg)
}

// keep applies pred to the sole input slot, preserving order.
func keep(input [][]domain.Track, pred func(domain.Track) bool) []domain.Track {
	if len(input) == 0 {
		return nil
	}
	out := make([]domain.Track, 0, len(input[0]))
	for _, t := range input[0] {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}
