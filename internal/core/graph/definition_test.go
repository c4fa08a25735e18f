package graph

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

const sampleYAML = `id: g1
name: Dance picks
nodes:
  - key: liked
    kind: playlist_source
    config:
      playlist_id: P
  - key: dance
    kind: danceability_filter
    config:
      min: 50
      max: 100
  - key: top
    kind: limit
    config:
      count: 10
  - key: out
    kind: playlist_output
    config:
      playlist_id: 7b1c0f39-0c61-4a0e-9a55-3f4c2f2b8d10
      name: Dance picks
edges:
  - from: liked
    to: dance
  - from: dance
    to: top
  - from: top
    to: out
`

func TestDefinition_RoundTrip(t *testing.T) {
	def, err := DecodeDefinition(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	g, err := Build(def, nil)
	require.NoError(t, err)
	assert.True(t, g.Runnable())

	got := Describe(g, def.ID, def.Name)
	require.Len(t, got.Nodes, 4)
	assert.Equal(t, def.Edges, got.Edges)
	assert.Equal(t, map[string]any{"min": 50.0, "max": 100.0}, got.Nodes[1].Config)
	assert.Equal(t, "7b1c0f39-0c61-4a0e-9a55-3f4c2f2b8d10", got.Nodes[3].Config["playlist_id"])

	var buf bytes.Buffer
	require.NoError(t, EncodeDefinition(&buf, got))
	again, err := DecodeDefinition(&buf)
	require.NoError(t, err)
	g2, err := Build(again, nil)
	require.NoError(t, err)
	assert.Equal(t, got, Describe(g2, again.ID, again.Name))
}

func TestDecodeDefinition_Errors(t *testing.T) {
	_, err := DecodeDefinition(strings.NewReader(""))
	assert.Error(t, err)

	_, err = DecodeDefinition(strings.NewReader("id: x\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		def     domain.GraphDefinition
		wantErr error
	}{
		{
			name:    "unknown kind",
			def:     domain.GraphDefinition{Nodes: []domain.NodeDefinition{{Key: "a", Kind: "shuffle"}}},
			wantErr: ErrUnknownKind,
		},
		{
			name: "duplicate key",
			def: domain.GraphDefinition{Nodes: []domain.NodeDefinition{
				{Key: "a", Kind: KindUnion}, {Key: "a", Kind: KindConcat},
			}},
			wantErr: ErrDuplicateKey,
		},
		{
			name: "edge to unknown node",
			def: domain.GraphDefinition{
				Nodes: []domain.NodeDefinition{{Key: "a", Kind: KindUnion}},
				Edges: []domain.EdgeDefinition{{From: "a", To: "b"}},
			},
			wantErr: ErrNodeNotFound,
		},
		{
			name: "input into a source",
			def: domain.GraphDefinition{
				Nodes: []domain.NodeDefinition{{Key: "a", Kind: KindUnion}, {Key: "s", Kind: KindTagSource}},
				Edges: []domain.EdgeDefinition{{From: "a", To: "s"}},
			},
			wantErr: ErrInputRejected,
		},
		{
			name: "bad config",
			def: domain.GraphDefinition{Nodes: []domain.NodeDefinition{
				{Key: "l", Kind: KindLimit, Config: map[string]any{"count": 2.5}},
			}},
			wantErr: ErrInvalidConfig,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.def, nil)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestApply_OnlyChangedBranchCleared(t *testing.T) {
	def, err := DecodeDefinition(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	g, err := Build(def, nil)
	require.NoError(t, err)

	repo := newFakeRepo()
	repo.playlists["P"] = fivePlaylist()
	d := NewDriver(Env{Tracks: repo})
	_, err = d.Run(context.Background(), g, RunOptions{})
	require.NoError(t, err)

	liked, _ := g.Lookup("liked")
	dance, _ := g.Lookup("dance")
	top, _ := g.Lookup("top")

	def.Nodes[2].Config = map[string]any{"count": 1}
	require.NoError(t, Apply(g, def))

	_, ok := g.Output(liked)
	assert.True(t, ok)
	_, ok = g.Output(dance)
	assert.True(t, ok)
	_, ok = g.Output(top)
	assert.False(t, ok)

	id, ok := g.Lookup("top")
	require.True(t, ok)
	assert.Equal(t, top, id, "kept nodes keep their handle")
}

func TestApply_RewiresAndReplaces(t *testing.T) {
	def, err := DecodeDefinition(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	g, err := Build(def, nil)
	require.NoError(t, err)

	// Drop the filter, feed the limit straight from the source and swap
	// the limit for a deduplicate node under the same key.
	def.Nodes = []domain.NodeDefinition{def.Nodes[0], {Key: "top", Kind: KindDeduplicate}, def.Nodes[3]}
	def.Edges = []domain.EdgeDefinition{{From: "liked", To: "top"}, {From: "top", To: "out"}}
	require.NoError(t, Apply(g, def))

	_, ok := g.Lookup("dance")
	assert.False(t, ok)
	top, ok := g.Lookup("top")
	require.True(t, ok)
	n, _ := g.Node(top)
	assert.Equal(t, KindDeduplicate, n.Kind())

	got := Describe(g, def.ID, def.Name)
	assert.ElementsMatch(t, def.Edges, got.Edges)
	assert.True(t, g.Runnable())
}

func TestApply_OmittedSettingsMatchBuild(t *testing.T) {
	def, err := DecodeDefinition(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	g, err := Build(def, nil)
	require.NoError(t, err)
	out, _ := g.Lookup("out")
	n, _ := g.Node(out)
	outputID, _ := n.(*PlaylistOutput).Target()

	// Drop min from the filter and the playlist id from the output, and
	// add a node with no key.
	def.Nodes[1].Config = map[string]any{"max": 90}
	def.Nodes[3].Config = map[string]any{"name": "Renamed"}
	def.Nodes = append(def.Nodes, domain.NodeDefinition{Kind: KindTagSource, Config: map[string]any{"tag_id": "rock"}})
	require.NoError(t, Apply(g, def))

	rebuilt, err := Build(def, nil)
	require.NoError(t, err)
	for _, key := range []string{"liked", "dance", "top"} {
		live, _ := g.Lookup(key)
		fresh, _ := rebuilt.Lookup(key)
		ln, _ := g.Node(live)
		fn, _ := rebuilt.Node(fresh)
		assert.Equal(t, fn.(Configurable).Config(), ln.(Configurable).Config(), key)
	}
	dance, _ := g.Lookup("dance")
	n, _ = g.Node(dance)
	lo, hi := n.(*RangeFilter).Bounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 90.0, hi)

	n, _ = g.Node(out)
	id, name := n.(*PlaylistOutput).Target()
	assert.Equal(t, outputID, id, "generated playlist id survives edits")
	assert.Equal(t, "Renamed", name)

	// Applying the same unkeyed definition again keeps exactly one such node.
	require.NoError(t, Apply(g, def))
	assert.Len(t, g.Nodes(), 5)
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	for _, k := range []string{KindPlaylistSource, KindTagSource, "danceability_filter", "loudness_filter", "year_filter", KindSort, KindPlaylistOutput} {
		assert.Contains(t, kinds, k)
	}
}
