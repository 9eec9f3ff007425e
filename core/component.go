package core

import "context"

// Component defines the interface that all units registered with an engine
// must implement.
//
// A component is identified by its Name, which must be stable and non-empty.
// Start is the single entry point; the engine invokes it exactly once when
// the engine starts, passing the component's own ComponentContext. There is
// no stop or pause hook: a component whose Start returns simply stops doing
// work of its own, while endpoints and listeners it registered stay active.
//
// Implementations must:
//   - Communicate with other components only through the provided context
//   - Respect ctx cancellation in long-running loops
//   - Return an error (or panic) only for failures of their own entry point;
//     the engine captures and reports these without affecting siblings
type Component interface {
	Name() string
	Start(ctx context.Context, mesh ComponentContext) error
}

// ComponentInfo carries identifying details about a component used in logs
// and introspection.
type ComponentInfo struct{ Name, Description string }

// Describer is optionally implemented by components that expose a
// human-readable description.
type Describer interface {
	Description() string
}

// InfoOf builds a ComponentInfo for c.
func InfoOf(c Component) ComponentInfo {
	info := ComponentInfo{Name: c.Name()}
	if d, ok := c.(Describer); ok {
		info.Description = d.Description()
	}
	return info
}
