package graph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

var registry = map[string]func() Node{
	KindPlaylistSource:  func() Node { return NewPlaylistSource("") },
	KindTagSource:       func() Node { return NewTagSource("") },
	KindArtistFilter:    func() Node { return NewArtistFilter("") },
	KindTagFilter:       func() Node { return NewTagFilter("") },
	KindUntaggedFilter:  func() Node { return NewUntaggedFilter() },
	KindConcat:          NewConcat,
	KindUnion:           NewUnion,
	KindIntersect:       NewIntersect,
	KindRemove:          NewRemove,
	KindDeduplicate:     func() Node { return NewDeduplicate() },
	KindSort:            func() Node { return NewSort(SortByName, false) },
	KindLimit:           func() Node { return NewLimit(50) },
	KindPlaylistOutput:  func() Node { return NewPlaylistOutput("") },
	KindAssignTagOutput: func() Node { return NewAssignTagOutput("") },
}

func init() {
	for name := range Features {
		registry[name+"_filter"] = func() Node {
			f, _ := NewRangeFilter(name)
			return f
		}
	}
}

// Kinds lists the registered node kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewNode builds an unbound node of kind and applies cfg to it.
func NewNode(kind string, cfg map[string]any) (Node, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	n := factory()
	if len(cfg) > 0 {
		c, ok := n.(Configurable)
		if !ok {
			return nil, fmt.Errorf("%w: %s takes no config", ErrInvalidConfig, kind)
		}
		if err := c.Configure(cfg); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Build constructs a graph from a definition. Edges are connected in
// definition order, which fixes each node's input order.
func Build(def domain.GraphDefinition, logger *slog.Logger) (*Graph, error) {
	g := New(logger)
	for _, nd := range def.Nodes {
		n, err := NewNode(nd.Kind, nd.Config)
		if err != nil {
			return nil, fmt.Errorf("graph: node %q: %w", nd.Key, err)
		}
		if _, err := g.AddNode(nd.Key, n); err != nil {
			return nil, fmt.Errorf("graph: node %q: %w", nd.Key, err)
		}
	}
	for _, e := range def.Edges {
		if err := g.connectKeys(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Describe produces the definition of g. Nodes are listed in handle order;
// edges are grouped by target in input order.
func Describe(g *Graph, id, name string) domain.GraphDefinition {
	def := domain.GraphDefinition{ID: id, Name: name}
	for _, nid := range g.Nodes() {
		n, ok := g.Node(nid)
		if !ok {
			continue
		}
		nd := domain.NodeDefinition{Key: n.Binding().Key(), Kind: n.Kind()}
		if c, ok := n.(Configurable); ok {
			nd.Config = c.Config()
		}
		def.Nodes = append(def.Nodes, nd)
	}
	for _, nid := range g.Nodes() {
		to := g.keyOf(nid)
		for _, in := range g.Inputs(nid) {
			def.Edges = append(def.Edges, domain.EdgeDefinition{From: g.keyOf(in), To: to})
		}
	}
	return def
}

// Apply reconciles g with def in place so that g ends up as Build(def)
// would make it. Nodes are matched by key: missing nodes are removed, new
// ones added, and kept ones reconfigured through their setters so only
// changed branches lose their cached results. Settings a definition omits
// fall back to the kind's defaults. Unkeyed nodes never match and are
// built afresh. Input lists are rewired only for nodes whose inputs differ.
func Apply(g *Graph, def domain.GraphDefinition) error {
	wanted := make(map[string]domain.NodeDefinition, len(def.Nodes))
	for _, nd := range def.Nodes {
		if nd.Key != "" {
			wanted[nd.Key] = nd
		}
	}

	for _, id := range g.Nodes() {
		key := g.keyOf(id)
		nd, keep := wanted[key]
		n, _ := g.Node(id)
		if keep && n != nil && n.Kind() == nd.Kind {
			continue
		}
		if err := g.RemoveNode(id); err != nil {
			return err
		}
	}

	for _, nd := range def.Nodes {
		if id, ok := g.Lookup(nd.Key); ok && nd.Key != "" {
			n, _ := g.Node(id)
			if err := reconfigure(n, nd); err != nil {
				return fmt.Errorf("graph: node %q: %w", nd.Key, err)
			}
			continue
		}
		n, err := NewNode(nd.Kind, nd.Config)
		if err != nil {
			return fmt.Errorf("graph: node %q: %w", nd.Key, err)
		}
		if _, err := g.AddNode(nd.Key, n); err != nil {
			return fmt.Errorf("graph: node %q: %w", nd.Key, err)
		}
	}

	desired := make(map[string][]string)
	for _, e := range def.Edges {
		desired[e.To] = append(desired[e.To], e.From)
	}
	// Drop stale edges everywhere first so rewiring cannot trip over a
	// transient cycle.
	var rewire []string
	for _, id := range g.Nodes() {
		key := g.keyOf(id)
		current := make([]string, 0)
		for _, in := range g.Inputs(id) {
			current = append(current, g.keyOf(in))
		}
		if slices.Equal(current, desired[key]) {
			continue
		}
		for _, in := range g.Inputs(id) {
			if err := g.Disconnect(in, id); err != nil {
				return err
			}
		}
		rewire = append(rewire, key)
	}
	for _, to := range rewire {
		for _, from := range desired[to] {
			if err := g.connectKeys(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconfigure gives a kept node the full settings Build would give it:
// the kind's defaults overlaid with nd.Config. Settings that identify what
// a node writes to are kept when nd omits them.
func reconfigure(n Node, nd domain.NodeDefinition) error {
	c, ok := n.(Configurable)
	if !ok {
		return nil
	}
	fresh, err := NewNode(nd.Kind, nd.Config)
	if err != nil {
		return err
	}
	full := fresh.(Configurable).Config()
	if k, ok := n.(interface{ retainedKeys() []string }); ok {
		for _, key := range k.retainedKeys() {
			if _, set := nd.Config[key]; !set {
				delete(full, key)
			}
		}
	}
	return c.Configure(full)
}

func (g *Graph) connectKeys(from, to string) error {
	src, ok := g.Lookup(from)
	if !ok {
		return fmt.Errorf("graph: edge %q -> %q: %w: %q", from, to, ErrNodeNotFound, from)
	}
	dst, ok := g.Lookup(to)
	if !ok {
		return fmt.Errorf("graph: edge %q -> %q: %w: %q", from, to, ErrNodeNotFound, to)
	}
	if err := g.Connect(src, dst); err != nil {
		return fmt.Errorf("graph: edge %q -> %q: %w", from, to, err)
	}
	return nil
}

func (g *Graph) keyOf(id ID) string {
	n, ok := g.Node(id)
	if !ok {
		return ""
	}
	return n.Binding().Key()
}

// DecodeDefinition reads a YAML graph definition. Unknown fields are
// rejected.
func DecodeDefinition(r io.Reader) (domain.GraphDefinition, error) {
	var def domain.GraphDefinition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return def, fmt.Errorf("graph: decode definition: empty document")
		}
		return def, fmt.Errorf("graph: decode definition: %w", err)
	}
	return def, nil
}

// EncodeDefinition writes def as YAML.
func EncodeDefinition(w io.Writer, def domain.GraphDefinition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("graph: encode definition: %w", err)
	}
	return enc.Close()
}
