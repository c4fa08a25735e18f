package rest

import (
	"time"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/core/services"
	"github.com/ewilliams-labs/songtagger/internal/worker"
)

type trackResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	DurationMs  int                `json:"duration_ms,omitempty"`
	Artists     []string           `json:"artists,omitempty"`
	Album       string             `json:"album,omitempty"`
	ReleaseDate string             `json:"release_date,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Features    map[string]float64 `json:"features,omitempty"`
}

func newTrackResponse(t domain.Track) trackResponse {
	out := trackResponse{ID: t.ID, Name: t.Name, DurationMs: t.DurationMs}
	for _, a := range t.Artists {
		out.Artists = append(out.Artists, a.Name)
	}
	if t.Album != nil {
		out.Album = t.Album.Name
		out.ReleaseDate = t.Album.ReleaseDate
	}
	for _, tag := range t.Tags {
		name := tag.Name
		if name == "" {
			name = tag.ID
		}
		out.Tags = append(out.Tags, name)
	}
	if t.AudioFeatures != nil {
		out.Features = make(map[string]float64)
		for name, f := range graph.Features {
			if !f.Requires.AudioFeatures {
				continue
			}
			if v, ok := f.Extract(t); ok {
				out.Features[name] = v
			}
		}
	}
	return out
}

func newTrackList(tracks []domain.Track) []trackResponse {
	if tracks == nil {
		return nil
	}
	out := make([]trackResponse, len(tracks))
	for i, t := range tracks {
		out[i] = newTrackResponse(t)
	}
	return out
}

type nodeStatusResponse struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Valid    bool   `json:"valid"`
	Computed bool   `json:"computed"`
}

type graphResponse struct {
	Definition domain.GraphDefinition `json:"definition"`
	Runnable   bool                   `json:"runnable"`
	Nodes      []nodeStatusResponse   `json:"nodes"`
}

func newGraphResponse(def domain.GraphDefinition, st services.GraphStatus) graphResponse {
	out := graphResponse{Definition: def, Runnable: st.Runnable, Nodes: []nodeStatusResponse{}}
	for _, n := range st.Nodes {
		out.Nodes = append(out.Nodes, nodeStatusResponse(n))
	}
	return out
}

type diagnosticResponse struct {
	Node    string `json:"node"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runResponse struct {
	GraphID string `json:"graph_id"`
	// A null output means the terminal stayed unset.
	Outputs     map[string][]trackResponse `json:"outputs"`
	Status      map[string]string          `json:"status"`
	Diagnostics []diagnosticResponse       `json:"diagnostics"`
	Error       string                     `json:"error,omitempty"`
}

func newRunResponse(r *services.RunReport) *runResponse {
	if r == nil {
		return nil
	}
	out := &runResponse{
		GraphID:     r.GraphID,
		Outputs:     make(map[string][]trackResponse, len(r.Outputs)),
		Status:      r.Status,
		Diagnostics: []diagnosticResponse{},
	}
	for key, tracks := range r.Outputs {
		out.Outputs[key] = newTrackList(tracks)
	}
	for _, d := range r.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, diagnosticResponse(d))
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

type backgroundRunResponse struct {
	ID         string       `json:"id"`
	GraphID    string       `json:"graph_id"`
	State      string       `json:"state"`
	IncludeAll bool         `json:"include_all"`
	Persist    bool         `json:"persist"`
	Error      string       `json:"error,omitempty"`
	QueuedAt   time.Time    `json:"queued_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Result     *runResponse `json:"result,omitempty"`
}

func newBackgroundRunResponse(r worker.Run) backgroundRunResponse {
	opt := func(t time.Time) *time.Time {
		if t.IsZero() {
			return nil
		}
		return &t
	}
	return backgroundRunResponse{
		ID:         r.ID,
		GraphID:    r.GraphID,
		State:      string(r.State),
		IncludeAll: r.Options.IncludeAll,
		Persist:    r.Options.Persist,
		Error:      r.Error,
		QueuedAt:   r.Queued,
		StartedAt:  opt(r.Started),
		FinishedAt: opt(r.Finished),
		Result:     newRunResponse(r.Report),
	}
}

type playlistResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Tracks []trackResponse `json:"tracks,omitempty"`
}

type tagResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}
