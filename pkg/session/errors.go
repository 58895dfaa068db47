package session

import "github.com/vango-dev/vbridge/internal/errors"

var (
	// ErrDisposed is returned when a disposed proxy is mutated.
	ErrDisposed = errors.New("B201")

	// ErrReparent is returned when a rendered proxy is appended to a
	// different parent.
	ErrReparent = errors.New("B202")

	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("B203")

	// ErrNotChild is returned when a reference element is not a child.
	ErrNotChild = errors.New("B204")

	// ErrNoListener is returned when an event has no listener.
	ErrNoListener = errors.New("B205")

	// ErrNotFound is returned when no element has the requested id or key.
	ErrNotFound = errors.New("B206")

	// ErrUnknownUpdate is returned for batch updates of an unknown kind.
	ErrUnknownUpdate = errors.New("B208")
)
