package graph

// EventKind names a change notification.
type EventKind int

const (
	ResultCleared EventKind = iota
	ResultComputed
	ValidityChanged
	ConnectionAdded
	ConnectionRemoved
	NodeAdded
	NodeRemoved
)

func (k EventKind) String() string {
	switch k {
	case ResultCleared:
		return "result_cleared"
	case ResultComputed:
		return "result_computed"
	case ValidityChanged:
		return "validity_changed"
	case ConnectionAdded:
		return "connection_added"
	case ConnectionRemoved:
		return "connection_removed"
	case NodeAdded:
		return "node_added"
	case NodeRemoved:
		return "node_removed"
	default:
		return "unknown"
	}
}

// Event is delivered synchronously to every subscriber. Peer is the
// consumer side of a connection event and NoID otherwise.
type Event struct {
	Kind EventKind
	Node ID
	Peer ID
}

// Subscribe registers fn for every future event and returns a function that
// removes it. fn runs on the goroutine that caused the change, outside the
// graph lock, and may call back into the graph.
func (g *Graph) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.lmu.Lock()
	id := g.nextLst
	g.nextLst++
	g.listeners[id] = fn
	g.lmu.Unlock()

	return func() {
		g.lmu.Lock()
		delete(g.listeners, id)
		g.lmu.Unlock()
	}
}

func (g *Graph) emit(ev Event) {
	g.lmu.Lock()
	fns := make([]func(Event), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
