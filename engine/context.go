package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/componentmesh/bus"
	"github.com/hupe1980/componentmesh/core"
	"github.com/hupe1980/componentmesh/logging"
)

// Context is the per-component facade over the shared Broker. It implements
// core.ComponentContext.
//
// Each Context owns three things exclusively:
//   - its listener list (event subscriptions keyed by source and event name)
//   - its endpoint table (handlers keyed by endpoint name)
//   - its pending-call table (outgoing calls keyed by correlation id)
//
// No other Context ever mutates them. The Context subscribes once per frame
// kind on the Broker and filters frames against its own tables.
type Context struct {
	name     string
	bus      *bus.Broker
	logger   logging.Logger
	reporter Reporter
	newID    core.IDGenerator
	timeout  time.Duration
	baseCtx  func() context.Context

	mu        sync.RWMutex
	listeners []listenerEntry
	endpoints map[string]endpointEntry

	pending *pendingTable

	subs        []*bus.Subscription
	disposeOnce sync.Once
	disposed    atomic.Bool
}

var _ core.ComponentContext = (*Context)(nil)

type listenerEntry struct {
	source   string
	event    string
	listener *core.Listener
}

type endpointEntry struct {
	spec    core.EndpointSpec
	handler core.Handler
}

// contextDeps bundles what a Context borrows from its Engine.
type contextDeps struct {
	bus      *bus.Broker
	logger   logging.Logger
	reporter Reporter
	newID    core.IDGenerator
	timeout  time.Duration
	baseCtx  func() context.Context
}

func newContext(name string, deps contextDeps) *Context {
	c := &Context{
		name:      name,
		bus:       deps.bus,
		logger:    logging.WithComponent(deps.logger, name),
		reporter:  deps.reporter,
		newID:     deps.newID,
		timeout:   deps.timeout,
		baseCtx:   deps.baseCtx,
		endpoints: make(map[string]endpointEntry),
		pending:   newPendingTable(),
	}

	c.subs = []*bus.Subscription{
		deps.bus.SubscribeEvents(c.onEvent),
		deps.bus.SubscribeCalls(c.onCall),
		deps.bus.SubscribeResults(c.onResult),
	}

	return c
}

// Name returns the owning component's name.
func (c *Context) Name() string { return c.name }

// Send broadcasts an event frame authored by this component. All matching
// listeners across all contexts run before Send returns.
func (c *Context) Send(event string, payload any) {
	c.bus.PublishEvent(core.EventFrame{Source: c.name, Event: event, Payload: payload})
}

// AddListener registers l for events named event from source. Adding the
// identical triple again is a no-op. A nil listener is ignored.
func (c *Context) AddListener(source, event string, l *core.Listener) {
	if l == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.listeners {
		if e.source == source && e.event == event && e.listener == l {
			return
		}
	}

	c.listeners = append(c.listeners, listenerEntry{source: source, event: event, listener: l})
}

// RemoveListener removes the first registration matching the triple. It is
// a no-op if there is none.
func (c *Context) RemoveListener(source, event string, l *core.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.listeners {
		if e.source == source && e.event == event && e.listener == l {
			c.listeners = slices.Delete(c.listeners, i, i+1)
			return
		}
	}
}

// AddEndpoint publishes h under spec.Name.
func (c *Context) AddEndpoint(spec core.EndpointSpec, h core.Handler) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: name is required", core.ErrInvalidEndpoint)
	}
	if h == nil {
		return fmt.Errorf("%w: %s: handler is nil", core.ErrInvalidEndpoint, spec.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.endpoints[spec.Name]; exists {
		return fmt.Errorf("%w: %s.%s", core.ErrDuplicateEndpoint, c.name, spec.Name)
	}

	c.endpoints[spec.Name] = endpointEntry{spec: spec, handler: h}
	c.logger.Debug("context.endpoint.added", "endpoint", spec.Name)

	return nil
}

// RemoveEndpoint withdraws the endpoint called name.
func (c *Context) RemoveEndpoint(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.endpoints[name]; !exists {
		return fmt.Errorf("%w: %s.%s", core.ErrEndpointNotFound, c.name, name)
	}

	delete(c.endpoints, name)
	c.logger.Debug("context.endpoint.removed", "endpoint", name)

	return nil
}

// Endpoints returns the registered specs sorted by name.
func (c *Context) Endpoints() []core.EndpointSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	specs := make([]core.EndpointSpec, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		specs = append(specs, e.spec)
	}
	slices.SortFunc(specs, func(a, b core.EndpointSpec) int { return strings.Compare(a.Name, b.Name) })

	return specs
}

// Call invokes endpoint on target and blocks until the call settles.
//
// The call settles with the handler's value when a result frame carrying
// this call's correlation id arrives, with core.ErrCallTimeout when the
// timeout elapses first, or with ctx.Err() when ctx ends first. Only the
// caller's wait is cancelled; the responding handler keeps running.
func (c *Context) Call(
	ctx context.Context,
	target, endpoint string,
	params core.Params,
	optFns ...func(o *core.CallOptions),
) (any, error) {
	res := <-c.CallAsync(ctx, target, endpoint, params, optFns...)
	return res.Value, res.Err
}

// CallAsync starts a call and returns a channel that receives exactly one
// CallResult.
//
// Protocol:
//  1. A fresh correlation id is generated
//  2. A pending entry with its timeout timer is stored in the pending table
//  3. A CallFrame is broadcast; the target context serves it asynchronously
//  4. The first of result frame, timer expiry or ctx cancellation to take
//     the entry out of the table settles the call; the others are no-ops
func (c *Context) CallAsync(
	ctx context.Context,
	target, endpoint string,
	params core.Params,
	optFns ...func(o *core.CallOptions),
) <-chan core.CallResult {
	opts := core.CallOptions{Timeout: c.timeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.timeout
	}

	p := &pendingCall{
		id:       c.newID(),
		target:   target,
		endpoint: endpoint,
		timeout:  opts.Timeout,
		started:  time.Now(),
		result:   make(chan core.CallResult, 1),
		done:     make(chan struct{}),
	}

	if err := ctx.Err(); err != nil {
		p.result <- core.CallResult{Err: err}
		return p.result
	}

	c.pending.add(p, c.expire)

	if ctx.Done() != nil {
		go c.watchCancel(ctx, p)
	}

	c.bus.PublishCall(core.CallFrame{
		Target:        target,
		CorrelationID: p.id,
		Endpoint:      endpoint,
		Params:        params.Clone(),
	})

	return p.result
}

// PendingCalls reports how many outgoing calls are still unsettled.
func (c *Context) PendingCalls() int { return c.pending.len() }

// Dispose removes this context's broker subscriptions. Registered endpoints
// are left in place but can no longer be reached. Outgoing calls that are
// still pending will time out. Dispose is idempotent.
func (c *Context) Dispose() {
	c.disposeOnce.Do(func() {
		for _, s := range c.subs {
			s.Unsubscribe()
		}
		c.disposed.Store(true)
		c.logger.Debug("context.disposed")
	})
}

// Disposed reports whether Dispose has been called.
func (c *Context) Disposed() bool { return c.disposed.Load() }

func (c *Context) onEvent(f core.EventFrame) {
	c.mu.RLock()
	var matched []*core.Listener
	for _, e := range c.listeners {
		if e.source == f.Source && e.event == f.Event {
			matched = append(matched, e.listener)
		}
	}
	c.mu.RUnlock()

	for _, l := range matched {
		c.notify(l, f)
	}
}

func (c *Context) notify(l *core.Listener, f core.EventFrame) {
	defer func() {
		if r := recover(); r != nil {
			c.reporter.Report(c.baseCtx(), Failure{
				Kind:      FailureListener,
				Component: c.name,
				Source:    f.Source,
				Event:     f.Event,
				Err:       fmt.Errorf("listener panicked: %v", r),
			})
		}
	}()

	l.Notify(f.Payload)
}

func (c *Context) onCall(f core.CallFrame) {
	if f.Target != c.name {
		return
	}

	c.mu.RLock()
	ep, ok := c.endpoints[f.Endpoint]
	c.mu.RUnlock()

	if !ok {
		// No error frame exists; the caller will time out.
		c.logger.Debug("context.call.unknown_endpoint", "endpoint", f.Endpoint, "correlation_id", f.CorrelationID)
		return
	}

	go c.serve(ep, f)
}

func (c *Context) serve(ep endpointEntry, f core.CallFrame) {
	ctx := c.baseCtx()
	req := core.NewRequest(f.Endpoint, f.CorrelationID, f.Params)

	value, err := invokeHandler(ctx, ep.handler, req)
	if err != nil {
		c.reporter.Report(ctx, Failure{
			Kind:          FailureEndpointHandler,
			Component:     c.name,
			Endpoint:      f.Endpoint,
			CorrelationID: f.CorrelationID,
			Err:           err,
		})
		return
	}

	c.bus.PublishResult(core.ResultFrame{Responder: c.name, CorrelationID: f.CorrelationID, Value: value})
}

func invokeHandler(ctx context.Context, h core.Handler, req *core.Request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h(ctx, req)
}

func (c *Context) onResult(f core.ResultFrame) {
	// Frames for ids this context does not own are ignored.
	c.settle(f.CorrelationID, func(*pendingCall) core.CallResult {
		return core.CallResult{Value: f.Value}
	})
}

func (c *Context) expire(id string) {
	c.settle(id, func(p *pendingCall) core.CallResult {
		return core.CallResult{Err: fmt.Errorf("%w: %s.%s after %s", core.ErrCallTimeout, p.target, p.endpoint, p.timeout)}
	})
}

func (c *Context) watchCancel(ctx context.Context, p *pendingCall) {
	select {
	case <-ctx.Done():
		c.settle(p.id, func(*pendingCall) core.CallResult {
			return core.CallResult{Err: ctx.Err()}
		})
	case <-p.done:
	}
}

// settle resolves the pending call id exactly once. It reports whether this
// invocation was the one that settled it.
func (c *Context) settle(id string, outcome func(p *pendingCall) core.CallResult) bool {
	p, ok := c.pending.take(id)
	if !ok {
		return false
	}

	p.timer.Stop()
	close(p.done)

	res := outcome(p)
	p.result <- res

	c.logCall(p, res.Err)

	return true
}

func (c *Context) logCall(p *pendingCall, err error) {
	dur := time.Since(p.started)
	if cl, ok := c.logger.(interface {
		LogCall(target, endpoint string, dur time.Duration, success bool, err error)
	}); ok {
		cl.LogCall(p.target, p.endpoint, dur, err == nil, err)
		return
	}

	if err != nil {
		c.logger.Warn("context.call.failed", "target", p.target, "endpoint", p.endpoint, "correlation_id", p.id, "error", err.Error())
		return
	}
	c.logger.Debug("context.call.settled", "target", p.target, "endpoint", p.endpoint, "correlation_id", p.id, "duration", dur)
}
