package testutil

import (
	"sync"
	"time"
)

// Recorder collects values from any goroutine and lets tests wait for them.
// Example:
//
//	rec := NewRecorder[engine.Failure]()
//	reporter := engine.ReporterFunc(func(_ context.Context, f engine.Failure) { rec.Record(f) })
//	...
//	require.True(t, rec.WaitFor(1, time.Second))
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	signal chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{signal: make(chan struct{}, 1)}
}

// Record appends v (safe for concurrent use).
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// All returns a copy of the recorded values in arrival order.
func (r *Recorder[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.values)
}

// WaitFor blocks until at least n values were recorded or timeout elapses.
// It reports whether n values arrived.
func (r *Recorder[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.signal:
		case <-deadline.C:
			return r.Len() >= n
		}
	}
}
