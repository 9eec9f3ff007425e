// Package bus implements the in-process broadcast channel shared by every
// component context.
//
// A Broker keeps three typed subscription tables, one per frame kind
// (event, call, result). Publishing a frame fans it out synchronously, on
// the publisher's goroutine, to every subscriber of the matching table in
// the order they subscribed. Subscribers added while a publish is in flight
// do not receive that frame.
//
// The broker lock is released before subscriber callbacks run, so callbacks
// may publish or (un)subscribe re-entrantly. The broker offers best-effort
// in-process delivery only: there is no persistence, acknowledgement or
// backpressure.
package bus
