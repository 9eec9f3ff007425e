package core

import "errors"

var (
	// ErrDuplicateEndpoint is returned when an endpoint name is registered
	// twice on the same context.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint")

	// ErrEndpointNotFound is returned when removing an endpoint that is not
	// registered on the context.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrCallTimeout is the only failure a caller observes from a remote
	// endpoint. It covers missing targets, missing endpoints, handlers that
	// failed and handlers that were too slow.
	ErrCallTimeout = errors.New("call timed out")

	// ErrInvalidEndpoint is returned when an endpoint has no name or no handler.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrAlreadyStarted is returned by Engine.Start on a second invocation.
	ErrAlreadyStarted = errors.New("engine already started")
)
