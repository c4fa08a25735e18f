package ports

import (
	"errors"
	"fmt"
)

// ErrUnsupportedJoin indicates a track store cannot serve a requested join.
var ErrUnsupportedJoin = errors.New("unsupported join")

// UnsupportedJoinError names the join a remote store could not provide.
type UnsupportedJoinError struct {
	Join string
}

func (e UnsupportedJoinError) Error() string {
	if e.Join == "" {
		return ErrUnsupportedJoin.Error()
	}
	return fmt.Sprintf("unsupported join %q", e.Join)
}

func (e UnsupportedJoinError) Is(target error) bool {
	return target == ErrUnsupportedJoin
}
