package bus

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/componentmesh/core"
)

// Broker is the shared broadcast channel. The zero value is not usable;
// construct with New. A Broker is safe for concurrent use.
type Broker struct {
	mu      sync.RWMutex
	nextID  uint64
	events  table[core.EventFrame]
	calls   table[core.CallFrame]
	results table[core.ResultFrame]

	eventsPublished  atomic.Uint64
	callsPublished   atomic.Uint64
	resultsPublished atomic.Uint64
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{}
}

// SubscribeEvents registers fn for every published EventFrame.
func (b *Broker) SubscribeEvents(fn func(core.EventFrame)) *Subscription {
	return subscribe(b, &b.events, fn)
}

// SubscribeCalls registers fn for every published CallFrame.
func (b *Broker) SubscribeCalls(fn func(core.CallFrame)) *Subscription {
	return subscribe(b, &b.calls, fn)
}

// SubscribeResults registers fn for every published ResultFrame.
func (b *Broker) SubscribeResults(fn func(core.ResultFrame)) *Subscription {
	return subscribe(b, &b.results, fn)
}

// PublishEvent delivers f to all event subscribers before returning.
func (b *Broker) PublishEvent(f core.EventFrame) {
	b.eventsPublished.Add(1)
	publish(b, &b.events, f)
}

// PublishCall delivers f to all call subscribers before returning.
func (b *Broker) PublishCall(f core.CallFrame) {
	b.callsPublished.Add(1)
	publish(b, &b.calls, f)
}

// PublishResult delivers f to all result subscribers before returning.
func (b *Broker) PublishResult(f core.ResultFrame) {
	b.resultsPublished.Add(1)
	publish(b, &b.results, f)
}

// Stats is a point-in-time snapshot of broker activity.
type Stats struct {
	EventSubscribers  int
	CallSubscribers   int
	ResultSubscribers int
	EventsPublished   uint64
	CallsPublished    uint64
	ResultsPublished  uint64
}

// Stats returns current subscriber counts and publish totals.
func (b *Broker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		EventSubscribers:  len(b.events.entries),
		CallSubscribers:   len(b.calls.entries),
		ResultSubscribers: len(b.results.entries),
		EventsPublished:   b.eventsPublished.Load(),
		CallsPublished:    b.callsPublished.Load(),
		ResultsPublished:  b.resultsPublished.Load(),
	}
}

// Subscription is the handle returned by the Subscribe* methods.
type Subscription struct {
	id     uint64
	once   sync.Once
	cancel func()
}

// ID returns the broker-unique id of the subscription.
func (s *Subscription) ID() uint64 { return s.id }

// Unsubscribe removes the subscription from its table. It is idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

type entry[F any] struct {
	id uint64
	fn func(F)
}

// table is an ordered subscription list for one frame kind. Access is
// guarded by the owning Broker's mutex.
type table[F any] struct {
	entries []entry[F]
}

func subscribe[F any](b *Broker, t *table[F], fn func(F)) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	t.entries = append(t.entries, entry[F]{id: id, fn: fn})
	b.mu.Unlock()

	return &Subscription{
		id: id,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			for i, e := range t.entries {
				if e.id == id {
					// Copy on removal so snapshots held by in-flight publishes stay intact.
					next := make([]entry[F], 0, len(t.entries)-1)
					next = append(next, t.entries[:i]...)
					t.entries = append(next, t.entries[i+1:]...)

					return
				}
			}
		},
	}
}

func publish[F any](b *Broker, t *table[F], frame F) {
	b.mu.RLock()
	snapshot := t.entries
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(frame)
	}
}
