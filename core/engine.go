package core

import "context"

// Engine coordinates component registration and bootstrap.
//
// A concrete implementation is responsible for:
//   - Building one ComponentContext per registered component (Register)
//   - Launching every component entry point concurrently (Start)
//   - Capturing entry point failures without propagating them to siblings
//
// Implementations SHOULD:
//   - Keep contexts isolated: one context never mutates another's tables
//   - Route swallowed failures through a single reporting interface
type Engine interface {
	// Register makes a component known to the engine. A component with the
	// same name replaces the previous registration.
	Register(c Component)

	// Start launches every registered entry point. It does not wait for
	// them to finish.
	Start(ctx context.Context) error

	// Wait blocks until every launched entry point has returned.
	Wait()
}
