package graph

import (
	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

type direction int

const (
	forward direction = iota
	backward
)

// walkLocked visits start and every node reachable from it in dir, each at
// most once. visit returning false stops the walk. Callers hold mu.
func (g *Graph) walkLocked(start ID, dir direction, visit func(ID) bool) {
	if _, err := g.slotLocked(start); err != nil {
		return
	}
	seen := map[ID]struct{}{start: {}}
	stack := []ID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(id) {
			return
		}
		s := g.slots[id]
		next := s.outputs
		if dir == backward {
			next = s.inputs
		}
		for _, n := range next {
			if _, ok := seen[n]; ok || g.slots[n] == nil {
				continue
			}
			seen[n] = struct{}{}
			stack = append(stack, n)
		}
	}
}

func (g *Graph) collect(start ID, dir direction) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []ID
	g.walkLocked(start, dir, func(id ID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// forwardSet returns id and every node reachable through its outputs.
func (g *Graph) forwardSet(id ID) []ID { return g.collect(id, forward) }

// backward returns id and every node from which id is reachable.
func (g *Graph) backward(id ID) []ID { return g.collect(id, backward) }

// ClearResult unsets the cached input and output of id and of every node
// forward-reachable from it. Computations already in flight for those nodes
// will discard their results.
func (g *Graph) ClearResult(id ID) {
	var cleared []ID
	g.mu.Lock()
	g.walkLocked(id, forward, func(n ID) bool {
		s := g.slots[n]
		s.epoch++
		if s.hasInput || s.hasOutput {
			s.input, s.output = nil, nil
			s.hasInput, s.hasOutput = false, false
			cleared = append(cleared, n)
		}
		return true
	})
	g.mu.Unlock()

	for _, n := range cleared {
		nodeInvalidations.Inc()
		g.emit(Event{Kind: ResultCleared, Node: n, Peer: NoID})
	}
}

// PropagateForward applies action to id and to every forward-reachable node,
// each exactly once. The reachable set is fixed before action runs.
func (g *Graph) PropagateForward(id ID, action func(ID)) {
	for _, n := range g.forwardSet(id) {
		action(n)
	}
}

// AnyForward reports whether id or any node reachable from it satisfies
// pred. It stops at the first match.
func (g *Graph) AnyForward(id ID, pred func(Node) bool) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	found := false
	g.walkLocked(id, forward, func(n ID) bool {
		if pred(g.slots[n].node) {
			found = true
			return false
		}
		return true
	})
	return found
}

// EffectiveRequirements returns the OR of the requirement flags declared by
// id and every node reachable from it, OR'd with includeAll. It is computed
// from the current topology on every call.
func (g *Graph) EffectiveRequirements(id ID, includeAll bool) domain.Requirements {
	if includeAll {
		return domain.AllRequirements()
	}
	var r domain.Requirements
	r.Artists = g.AnyForward(id, func(n Node) bool { return n.Requirements().Artists })
	r.Tags = g.AnyForward(id, func(n Node) bool { return n.Requirements().Tags })
	r.Albums = g.AnyForward(id, func(n Node) bool { return n.Requirements().Albums })
	r.AudioFeatures = g.AnyForward(id, func(n Node) bool { return n.Requirements().AudioFeatures })
	return r
}

// Included returns the joins the last fetch of source id was made with.
// ok is false when the source holds no result.
func (g *Graph) Included(id ID) (domain.Requirements, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.slotLocked(id)
	if err != nil || !s.hasInput {
		return domain.Requirements{}, false
	}
	return s.included, true
}
