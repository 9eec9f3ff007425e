package engine

import (
	"sync"
	"time"

	"github.com/hupe1980/componentmesh/core"
)

// pendingCall is the caller-side record of an in-flight call. It is created
// by Context.CallAsync and destroyed by whichever of result, timeout or
// caller cancellation takes it out of the pendingTable first.
type pendingCall struct {
	id       string
	target   string
	endpoint string
	timeout  time.Duration
	started  time.Time
	timer    *time.Timer
	result   chan core.CallResult // buffered, capacity 1
	done     chan struct{}        // closed on settle
}

// pendingTable maps correlation ids to pending calls. take is the only way
// to settle an entry, which makes settlement exactly-once.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

// add stores p and arms its timer while holding the table lock, so a settle
// racing with add always observes p.timer set.
func (t *pendingTable) add(p *pendingCall, onExpire func(id string)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls[p.id] = p
	p.timer = time.AfterFunc(p.timeout, func() { onExpire(p.id) })
}

// take removes and returns the call for id. Only the first caller for a
// given id gets ok == true.
func (t *pendingTable) take(id string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	return p, ok
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.calls)
}
