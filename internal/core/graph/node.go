package graph

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

// ID is a stable handle to a node inside one Graph. Handles are never reused
// while the graph lives.
type ID int

// NoID is returned where no node applies.
const NoID ID = -1

// Node is the contract every node kind implements.
//
// MapInputToOutput receives one track list per input connection, in input
// order, and must not modify them: input lists are shared with other nodes.
type Node interface {
	Kind() string
	Valid() bool
	Requirements() domain.Requirements
	MapInputToOutput(ctx context.Context, input [][]domain.Track) ([]domain.Track, error)
	Binding() *Base
}

// Source is a zero-input node that fetches its input from the library.
type Source interface {
	Node
	Fetch(ctx context.Context, repo ports.TrackRepository, include domain.Requirements) ([]domain.Track, error)
}

// InputAcceptor lets a kind restrict what may be connected to it.
// Kinds that do not implement it accept any number of inputs, except
// sources, which accept none.
type InputAcceptor interface {
	CanAddInput(candidate Node) bool
}

// ConnectionObserver is notified after an edge is added anywhere downstream
// of the observing node.
type ConnectionObserver interface {
	OnConnectionAdded(from, to ID)
}

// Sink is a terminal node whose output can be persisted.
type Sink interface {
	Node
	Persist(ctx context.Context, env Env, tracks []domain.Track) error
}

// Base binds a node to its graph. Kinds embed it; the graph fills it in on
// AddNode. mu guards the kind's configuration fields.
type Base struct {
	mu    sync.RWMutex
	graph *Graph
	id    ID
	key   string
}

// Binding returns the embedded Base.
func (b *Base) Binding() *Base { return b }

// ID returns the node handle, or NoID while unbound.
func (b *Base) ID() ID {
	if b.graph == nil {
		return NoID
	}
	return b.id
}

// Key returns the node's stable definition key.
func (b *Base) Key() string { return b.key }

// Graph returns the owning graph, or nil while unbound.
func (b *Base) Graph() *Graph { return b.graph }

// changed clears the node's cached result forward. validity reports that the
// change may have flipped Valid().
func (b *Base) changed(validity bool) {
	g := b.graph
	if g == nil {
		return
	}
	g.ClearResult(b.id)
	if validity {
		g.emit(Event{Kind: ValidityChanged, Node: b.id, Peer: NoID})
	}
}

// inputCount reports how many inputs are currently connected.
func (b *Base) inputCount() int {
	g := b.graph
	if g == nil {
		return 0
	}
	return len(g.Inputs(b.id))
}

// singleInput accepts a candidate only while nothing is connected yet.
func (b *Base) singleInput() bool {
	return b.inputCount() == 0
}
