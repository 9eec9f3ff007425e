// Package component provides helpers for writing componentmesh components.
//
// None of this is required by the engine: any type implementing
// core.Component can be registered. The helpers cover the common shapes:
//
//   - Base: embeddable identity (name, description)
//   - Func: a component from a plain function
//   - Loop: a polling / retry component that runs a step repeatedly with
//     iteration, interval, predicate and error controls
package component
