package domain

import (
	"math"
	"strconv"
	"strings"
)

// Track represents a musical track in the domain layer.
//
// Artists, Album, Tags and AudioFeatures are optional joins: the storage
// layer populates them only when they were requested, so nil/empty means
// "not loaded" as much as "not present".
type Track struct {
	ID            string
	Name          string
	DurationMs    int
	ISRC          string // International Standard Recording Code; stored and returned as given
	Artists       []Artist
	Album         *Album
	Tags          []Tag
	AudioFeatures *AudioFeatures
}

// Artist is a performer credited on a track.
type Artist struct {
	ID   string
	Name string
}

// Album groups tracks released together.
type Album struct {
	ID          string
	Name        string
	ReleaseDate string // YYYY, YYYY-MM or YYYY-MM-DD
}

// ReleaseYear parses the leading year of the release date.
func (a *Album) ReleaseYear() (int, bool) {
	if a == nil || len(a.ReleaseDate) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(a.ReleaseDate[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

// HasTag reports whether the track carries a tag with the given id.
func (t Track) HasTag(tagID string) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// ArtistNames joins the credited artist names for display.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// AudioFeatures holds the analysis snapshot stored for a track.
// Every attribute is optional: snapshots taken before a field was collected
// leave it nil, which is distinct from a measured zero.
type AudioFeatures struct {
	Acousticness     *float64 // 0..1
	Danceability     *float64 // 0..1
	Energy           *float64 // 0..1
	Instrumentalness *float64 // 0..1
	Liveness         *float64 // 0..1
	Speechiness      *float64 // 0..1
	Valence          *float64 // 0..1
	Loudness         *float64 // dB, typically -60..0
	Tempo            *float64 // BPM
	Key              *int
	Mode             *int
}

// AcousticnessPercent and the other *Percent accessors scale the stored
// 0..1 fraction to a rounded integer in 0..100. ok is false when the
// snapshot lacks the attribute.
func (f *AudioFeatures) AcousticnessPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Acousticness)
}

func (f *AudioFeatures) DanceabilityPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Danceability)
}

func (f *AudioFeatures) EnergyPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Energy)
}

func (f *AudioFeatures) InstrumentalnessPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Instrumentalness)
}

func (f *AudioFeatures) LivenessPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Liveness)
}

func (f *AudioFeatures) SpeechinessPercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Speechiness)
}

func (f *AudioFeatures) ValencePercent() (int, bool) {
	if f == nil {
		return 0, false
	}
	return percent(f.Valence)
}

// LoudnessDB returns the measured loudness in decibels.
func (f *AudioFeatures) LoudnessDB() (float64, bool) {
	if f == nil || f.Loudness == nil {
		return 0, false
	}
	return *f.Loudness, true
}

// TempoBPM returns the estimated tempo in beats per minute.
func (f *AudioFeatures) TempoBPM() (float64, bool) {
	if f == nil || f.Tempo == nil {
		return 0, false
	}
	return *f.Tempo, true
}

func percent(raw *float64) (int, bool) {
	if raw == nil {
		return 0, false
	}
	p := int(math.Round(*raw * 100))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, true
}

// Float is a convenience for building optional feature values.
func Float(v float64) *float64 { return &v }

// Int is a convenience for building optional integer values.
func Int(v int) *int { return &v }
