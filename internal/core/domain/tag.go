package domain

// Tag is a user-defined label assigned to tracks.
type Tag struct {
	ID    string
	Name  string
	Group string
}

// Requirements describes which optional joins a fetch must include.
type Requirements struct {
	Artists       bool
	Tags          bool
	Albums        bool
	AudioFeatures bool
}

// AllRequirements requests every optional join.
func AllRequirements() Requirements {
	return Requirements{Artists: true, Tags: true, Albums: true, AudioFeatures: true}
}

// Or merges two requirement sets.
func (r Requirements) Or(o Requirements) Requirements {
	return Requirements{
		Artists:       r.Artists || o.Artists,
		Tags:          r.Tags || o.Tags,
		Albums:        r.Albums || o.Albums,
		AudioFeatures: r.AudioFeatures || o.AudioFeatures,
	}
}

// Covers reports whether r includes everything o asks for.
func (r Requirements) Covers(o Requirements) bool {
	return (r.Artists || !o.Artists) &&
		(r.Tags || !o.Tags) &&
		(r.Albums || !o.Albums) &&
		(r.AudioFeatures || !o.AudioFeatures)
}

// Any reports whether at least one join is requested.
func (r Requirements) Any() bool {
	return r.Artists || r.Tags || r.Albums || r.AudioFeatures
}
