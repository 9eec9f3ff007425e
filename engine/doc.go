// Package engine implements the component registry, bootstrap and the
// per-component communication Context for componentmesh.
//
// # Core Responsibilities
//
// Component Management:
//   - Name-based registry; a repeated name replaces the earlier component
//   - One isolated Context per component, all sharing one bus.Broker
//   - Concurrent, fire-and-forget launch of every entry point on Start
//
// Communication (per Context):
//   - Events: Send broadcasts, AddListener/RemoveListener subscribe by
//     (source component, event name); delivery is synchronous and ordered
//   - Endpoints: AddEndpoint/RemoveEndpoint publish named handlers
//   - Calls: Call/CallAsync invoke another component's endpoint through a
//     correlation id and wait for the matching result frame or a timeout
//
// Failure Isolation:
//   - Entry point errors and panics, endpoint handler errors and panics and
//     listener panics are caught at their boundary and handed to a Reporter
//   - Nothing is re-thrown into another component
//
// # Call Protocol
//
//	caller Context                   bus.Broker                 target Context
//	    │  pending[id] + timer            │                            │
//	    │──── CallFrame{target,id} ──────▶│──── every context ────────▶│ target == own name?
//	    │                                 │                            │ endpoint found? go handler
//	    │◀──────── ResultFrame{id} ───────│◀─── on handler success ────│
//	    │  take(pending[id]) settles once │                            │
//
// A caller cannot tell a missing target, a missing endpoint, a failing
// handler and a slow handler apart: all four settle with
// core.ErrCallTimeout after the configured interval.
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Logger = logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	})
//	eng.Register(users)
//	eng.Register(notes)
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	eng.Wait()
package engine
