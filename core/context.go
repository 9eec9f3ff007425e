package core

import (
	"context"
	"time"
)

// ComponentContext is the isolated communication handle a component receives
// from the engine. All interaction with other components flows through it:
// nothing in this interface hands out a reference to another component.
//
// Event methods address publishers by (source component, event name).
// Endpoint methods address handlers by (target component, endpoint name).
type ComponentContext interface {
	// Name returns the name of the component owning this context.
	Name() string

	// Send broadcasts an event authored by this component. Every matching
	// listener runs synchronously before Send returns.
	Send(event string, payload any)

	// AddListener subscribes l to events named event published by source.
	// Registering the identical triple twice is a no-op.
	AddListener(source, event string, l *Listener)

	// RemoveListener removes the first matching registration, if any.
	RemoveListener(source, event string, l *Listener)

	// AddEndpoint publishes a handler under spec.Name for this component.
	// It fails with ErrDuplicateEndpoint if the name is already taken.
	AddEndpoint(spec EndpointSpec, h Handler) error

	// RemoveEndpoint withdraws a handler. It fails with ErrEndpointNotFound
	// if the name is not registered.
	RemoveEndpoint(name string) error

	// Endpoints lists the specs currently registered on this context.
	Endpoints() []EndpointSpec

	// Call invokes endpoint on target and waits for its value. Missing
	// targets, missing endpoints, failing handlers and slow handlers all
	// surface as ErrCallTimeout once the timeout elapses.
	Call(ctx context.Context, target, endpoint string, params Params, optFns ...func(o *CallOptions)) (any, error)

	// CallAsync is the non-blocking form of Call. The returned channel
	// receives exactly one CallResult and is never closed.
	CallAsync(ctx context.Context, target, endpoint string, params Params, optFns ...func(o *CallOptions)) <-chan CallResult
}

// CallOptions tunes a single Call.
type CallOptions struct {
	// Timeout bounds how long the caller waits for a result frame. Zero
	// selects the engine default (1s unless configured otherwise).
	Timeout time.Duration
}

// WithTimeout returns a call option overriding the call timeout.
func WithTimeout(d time.Duration) func(o *CallOptions) {
	return func(o *CallOptions) { o.Timeout = d }
}

// CallResult is the settled outcome of a call: exactly one of Value or Err
// is meaningful.
type CallResult struct {
	Value any
	Err   error
}
