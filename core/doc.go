// Package core provides the foundational domain types and interfaces shared
// by every componentmesh package. It defines the core abstractions for:
//
//   - Components (named units of behavior with a single entry point)
//   - ComponentContext (the per-component communication handle)
//   - Frames (immutable event, call and result records on the broadcast bus)
//   - Endpoints (named, component-scoped request handlers) and their Request view
//   - Correlation id generation
//
// The package intentionally keeps orchestration (registry, bootstrap,
// dispatch) out of scope; see the engine and bus packages for those.
package core
