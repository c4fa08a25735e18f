package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound  = errors.New("graph: node not found")
	ErrInputRejected = errors.New("graph: input rejected")
	ErrCycle         = errors.New("graph: connection would create a cycle")
	ErrUnknownKind   = errors.New("graph: unknown node kind")
	ErrAlreadyBound  = errors.New("graph: node already belongs to a graph")
	ErrDuplicateKey  = errors.New("graph: duplicate node key")
	ErrInvalidConfig = errors.New("graph: invalid node config")
)

// FetchError reports a collaborator failure raised while a node computed its
// result. It unwraps to the underlying storage or transport error.
type FetchError struct {
	Node ID
	Kind string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("graph: node %d (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
