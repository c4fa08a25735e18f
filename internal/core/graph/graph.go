package graph

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// Graph is an arena of nodes and the connections between them.
//
// Topology is edited by a single owner; the driver reads it concurrently.
// Cached results are written only by the driver and cleared only through
// ClearResult, both under mu, so readers see either unset or complete values.
type Graph struct {
	mu        sync.RWMutex
	slots     []*slot
	keys      map[string]ID
	knownTags map[string]domain.Tag

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextLst   int

	logger *slog.Logger
}

type slot struct {
	node    Node
	inputs  []ID // ordered
	outputs []ID // insertion order, no duplicates

	input     [][]domain.Track
	output    []domain.Track
	hasInput  bool
	hasOutput bool
	included  domain.Requirements // joins of the last source fetch
	epoch     uint64
}

// New returns an empty graph.
func New(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		keys:      make(map[string]ID),
		listeners: make(map[int]func(Event)),
		logger:    logger,
	}
}

// AddNode stores n in the arena under key and returns its handle. An empty
// key gets a generated one.
func (g *Graph) AddNode(key string, n Node) (ID, error) {
	b := n.Binding()
	if b.graph != nil {
		return NoID, ErrAlreadyBound
	}
	if key == "" {
		key = uuid.NewString()
	}

	g.mu.Lock()
	if _, ok := g.keys[key]; ok {
		g.mu.Unlock()
		return NoID, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	id := ID(len(g.slots))
	g.slots = append(g.slots, &slot{node: n})
	g.keys[key] = id
	b.graph, b.id, b.key = g, id, key
	g.mu.Unlock()

	g.emit(Event{Kind: NodeAdded, Node: id, Peer: NoID})
	return id, nil
}

// MustAdd is AddNode with a generated key for callers that build graphs in
// code; it panics only if n is already bound.
func (g *Graph) MustAdd(n Node) ID {
	id, err := g.AddNode("", n)
	if err != nil {
		panic(err)
	}
	return id
}

// RemoveNode severs every connection of id, clears former consumers forward
// and frees the slot.
func (g *Graph) RemoveNode(id ID) error {
	g.mu.Lock()
	s, err := g.slotLocked(id)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	consumers := slices.Clone(s.outputs)
	for _, in := range s.inputs {
		if src := g.slots[in]; src != nil {
			src.outputs = slices.DeleteFunc(src.outputs, func(o ID) bool { return o == id })
		}
	}
	for _, out := range s.outputs {
		if dst := g.slots[out]; dst != nil {
			dst.inputs = slices.DeleteFunc(dst.inputs, func(i ID) bool { return i == id })
		}
	}
	b := s.node.Binding()
	delete(g.keys, b.key)
	b.graph = nil
	g.slots[id] = nil
	g.mu.Unlock()

	for _, out := range consumers {
		g.ClearResult(out)
	}
	g.emit(Event{Kind: NodeRemoved, Node: id, Peer: NoID})
	return nil
}

// CanAddInput reports whether candidate may be connected as an input of to.
func (g *Graph) CanAddInput(to, candidate ID) bool {
	g.mu.RLock()
	dst, err1 := g.slotLocked(to)
	src, err2 := g.slotLocked(candidate)
	g.mu.RUnlock()
	if err1 != nil || err2 != nil {
		return false
	}
	return canAddInput(dst.node, src.node)
}

func canAddInput(to, candidate Node) bool {
	if a, ok := to.(InputAcceptor); ok {
		return a.CanAddInput(candidate)
	}
	if _, ok := to.(Source); ok {
		return false
	}
	return true
}

// Connect adds an edge from -> to, appending from to the end of to's
// ordered inputs. The consumer is cleared forward and every node upstream
// of the new edge is offered OnConnectionAdded.
func (g *Graph) Connect(from, to ID) error {
	if from == to {
		return fmt.Errorf("%w: self edge on %d", ErrCycle, from)
	}
	if !g.CanAddInput(to, from) {
		if _, err := g.node(to); err != nil {
			return err
		}
		if _, err := g.node(from); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d -> %d", ErrInputRejected, from, to)
	}

	g.mu.Lock()
	src, err := g.slotLocked(from)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	dst, err := g.slotLocked(to)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if slices.Contains(src.outputs, to) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d -> %d already connected", ErrInputRejected, from, to)
	}
	if g.reachableLocked(to, from) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d -> %d", ErrCycle, from, to)
	}
	src.outputs = append(src.outputs, to)
	dst.inputs = append(dst.inputs, from)
	g.mu.Unlock()

	g.ClearResult(to)
	g.emit(Event{Kind: ConnectionAdded, Node: from, Peer: to})

	for _, up := range g.backward(from) {
		n, err := g.node(up)
		if err != nil {
			continue
		}
		if obs, ok := n.(ConnectionObserver); ok {
			obs.OnConnectionAdded(from, to)
		}
	}
	return nil
}

// Disconnect removes the edge from -> to and clears the consumer forward.
func (g *Graph) Disconnect(from, to ID) error {
	g.mu.Lock()
	src, err := g.slotLocked(from)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	dst, err := g.slotLocked(to)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if !slices.Contains(src.outputs, to) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d -> %d", ErrNodeNotFound, from, to)
	}
	src.outputs = slices.DeleteFunc(src.outputs, func(o ID) bool { return o == to })
	dst.inputs = slices.DeleteFunc(dst.inputs, func(i ID) bool { return i == from })
	g.mu.Unlock()

	g.ClearResult(to)
	g.emit(Event{Kind: ConnectionRemoved, Node: from, Peer: to})
	return nil
}

// Node returns the node stored under id.
func (g *Graph) Node(id ID) (Node, bool) {
	n, err := g.node(id)
	return n, err == nil
}

func (g *Graph) node(id ID) (Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil {
		return nil, err
	}
	return s.node, nil
}

// Lookup resolves a definition key to a handle.
func (g *Graph) Lookup(key string) (ID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.keys[key]
	return id, ok
}

// Nodes lists live node handles in ascending order.
func (g *Graph) Nodes() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]ID, 0, len(g.slots))
	for i, s := range g.slots {
		if s != nil {
			ids = append(ids, ID(i))
		}
	}
	return ids
}

// Inputs returns the ordered input handles of id.
func (g *Graph) Inputs(id ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil {
		return nil
	}
	return slices.Clone(s.inputs)
}

// Outputs returns the consumer handles of id.
func (g *Graph) Outputs(id ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil {
		return nil
	}
	return slices.Clone(s.outputs)
}

// Terminals returns the designated output nodes: every Sink, or when the
// graph has none, every node without consumers.
func (g *Graph) Terminals() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var sinks, leaves []ID
	for i, s := range g.slots {
		if s == nil {
			continue
		}
		if _, ok := s.node.(Sink); ok {
			sinks = append(sinks, ID(i))
		}
		if len(s.outputs) == 0 {
			leaves = append(leaves, ID(i))
		}
	}
	if len(sinks) > 0 {
		return sinks
	}
	return leaves
}

// IsValid reports the kind-specific validity of id.
func (g *Graph) IsValid(id ID) bool {
	n, err := g.node(id)
	if err != nil {
		return false
	}
	return n.Valid()
}

// Runnable reports whether running the graph can produce a playlist: at
// least one terminal exists and every node feeding a terminal is valid and
// connected back to a source.
func (g *Graph) Runnable() bool {
	terminals := g.Terminals()
	if len(terminals) == 0 {
		return false
	}
	for _, t := range terminals {
		for _, id := range g.backward(t) {
			n, err := g.node(id)
			if err != nil || !n.Valid() {
				return false
			}
			if _, ok := n.(Source); !ok && len(g.Inputs(id)) == 0 {
				return false
			}
		}
	}
	return true
}

// SetKnownTags installs the currently loaded tag set. Source fetches that
// include tags drop references to tags outside this set. A nil slice
// disables the check.
func (g *Graph) SetKnownTags(tags []domain.Tag) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tags == nil {
		g.knownTags = nil
		return
	}
	g.knownTags = make(map[string]domain.Tag, len(tags))
	for _, t := range tags {
		g.knownTags[t.ID] = t
	}
}

// Output returns the cached output result of id. ok is false while unset.
func (g *Graph) Output(id ID) ([]domain.Track, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil || !s.hasOutput {
		return nil, false
	}
	return s.output, true
}

// Input returns the cached input result of id. ok is false while unset.
func (g *Graph) Input(id ID) ([][]domain.Track, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil || !s.hasInput {
		return nil, false
	}
	return s.input, true
}

func (g *Graph) slotLocked(id ID) (*slot, error) {
	if id < 0 || int(id) >= len(g.slots) || g.slots[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return g.slots[id], nil
}

// reachableLocked reports whether target is forward-reachable from start.
func (g *Graph) reachableLocked(start, target ID) bool {
	found := false
	g.walkLocked(start, forward, func(id ID) bool {
		if id == target {
			found = true
			return false
		}
		return true
	})
	return found
}
