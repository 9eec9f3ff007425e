package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/componentmesh/bus"
	"github.com/hupe1980/componentmesh/core"
	"github.com/hupe1980/componentmesh/logging"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    DefaultCallTimeout: 5 * time.Second,
//	}
type Config struct {
	// DefaultCallTimeout bounds every Call that does not pass its own
	// timeout. Calls to missing targets, missing endpoints or failing
	// handlers all settle with core.ErrCallTimeout after this interval.
	DefaultCallTimeout time.Duration
}

// DefaultConfig provides the default configuration values.
//
// Configuration values:
//   - DefaultCallTimeout: 1s
var DefaultConfig = Config{
	DefaultCallTimeout: time.Second,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := New(func(o *Options) {
//	    o.Config.DefaultCallTimeout = 250 * time.Millisecond
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Reporter receives every failure the engine absorbs. Defaults to a
	// LoggingReporter over Logger.
	Reporter Reporter

	// IDGenerator mints correlation ids. Defaults to core.NewID.
	IDGenerator core.IDGenerator

	// Bus is the broadcast channel shared by all contexts. Defaults to a
	// fresh broker owned by this engine.
	Bus *bus.Broker
}

// State is the lifecycle state of a registered component.
type State int32

const (
	// StateRegistered means the entry point has not been launched yet.
	StateRegistered State = iota
	// StateRunning means the entry point is executing.
	StateRunning
	// StateCompleted means the entry point returned without error.
	StateCompleted
	// StateFailed means the entry point returned an error or panicked.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// registration is the deferred unit of work stored per component.
type registration struct {
	component core.Component
	ctx       *Context
	state     atomic.Int32
}

// Engine holds the component registry and bootstraps components.
//
// Core Responsibilities:
//   - Component Registry: name-based registration and lookup
//   - Context Construction: one isolated Context per component, all wired to one Broker
//   - Bootstrap: concurrent, fire-and-forget launch of every entry point
//   - Failure Isolation: entry point errors and panics go to the Reporter only
//
// Concurrency Model:
//   - Registry access is guarded by an RWMutex
//   - Each entry point runs on its own goroutine
//   - Dispatch between contexts happens on the publishing goroutine
//
// Component names are not validated for uniqueness: registering a second
// component under an existing name replaces the first one.
type Engine struct {
	bus      *bus.Broker
	logger   logging.Logger
	reporter Reporter
	newID    core.IDGenerator
	config   Config

	mu            sync.RWMutex
	registrations map[string]*registration
	order         []string
	started       bool
	runCtx        context.Context

	wg sync.WaitGroup
}

var _ core.Engine = (*Engine)(nil)

// New creates a new Engine instance with sensible defaults and optional configuration.
//
// Default Services:
//   - Bus: a private broker
//   - Logger: No-op logger that discards all messages
//   - Reporter: LoggingReporter writing through Logger
//   - IDGenerator: random UUIDs
//
// Examples:
//
//	// Minimal setup with all defaults
//	eng := New()
//
//	// Custom timeout and structured logging
//	eng := New(func(o *Options) {
//	    o.Config.DefaultCallTimeout = 2 * time.Second
//	    o.Logger = logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	})
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Reporter == nil {
		opts.Reporter = NewLoggingReporter(opts.Logger)
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = core.NewID
	}
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.Config.DefaultCallTimeout <= 0 {
		opts.Config.DefaultCallTimeout = DefaultConfig.DefaultCallTimeout
	}

	return &Engine{
		bus:           opts.Bus,
		logger:        opts.Logger,
		reporter:      opts.Reporter,
		newID:         opts.IDGenerator,
		config:        opts.Config,
		registrations: make(map[string]*registration),
	}
}

// Register builds a Context bound to c.Name() and stores c's entry point
// for Start.
//
// If a component with the same name already exists it is replaced: its
// Context is disposed and its entry point, if already running, continues
// unobserved. When the engine has already started, the new entry point is
// launched immediately.
func (e *Engine) Register(c core.Component) {
	_ = e.RegisterContext(c)
}

// RegisterContext is Register returning the created Context.
func (e *Engine) RegisterContext(c core.Component) *Context {
	name := c.Name()

	mc := newContext(name, contextDeps{
		bus:      e.bus,
		logger:   e.logger,
		reporter: e.reporter,
		newID:    e.newID,
		timeout:  e.config.DefaultCallTimeout,
		baseCtx:  e.baseContext,
	})

	reg := &registration{component: c, ctx: mc}

	e.mu.Lock()
	prev, replaced := e.registrations[name]
	e.registrations[name] = reg
	if !replaced {
		e.order = append(e.order, name)
	}
	started, runCtx := e.started, e.runCtx
	e.mu.Unlock()

	if replaced {
		e.logger.Warn("engine.component.replaced", "component", name)
		prev.ctx.Dispose()
	}

	e.logger.Debug("engine.component.registered", "component", name)

	if started {
		e.launch(runCtx, reg)
	}

	return mc
}

// Start launches every registered entry point on its own goroutine and
// returns without waiting for them. ctx is passed to every entry point and
// becomes the base context of endpoint handlers.
//
// Failures of individual entry points never abort the engine; they are
// handed to the Reporter. There is no restart or backoff. Start returns
// core.ErrAlreadyStarted if called twice.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return core.ErrAlreadyStarted
	}
	e.started = true
	e.runCtx = ctx

	regs := make([]*registration, 0, len(e.order))
	for _, name := range e.order {
		regs = append(regs, e.registrations[name])
	}
	e.mu.Unlock()

	e.logger.Info("engine.start", "components", len(regs))

	for _, reg := range regs {
		e.launch(ctx, reg)
	}

	return nil
}

// Wait blocks until every launched entry point has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// State returns the lifecycle state of the named component.
func (e *Engine) State(name string) (State, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reg, ok := e.registrations[name]
	if !ok {
		return StateRegistered, false
	}
	return State(reg.state.Load()), true
}

// Component retrieves a registered component by name.
func (e *Engine) Component(name string) (core.Component, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reg, ok := e.registrations[name]
	if !ok {
		return nil, false
	}
	return reg.component, true
}

// Context retrieves the Context of a registered component by name.
func (e *Engine) Context(name string) (*Context, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reg, ok := e.registrations[name]
	if !ok {
		return nil, false
	}
	return reg.ctx, true
}

// Components returns the registered component names in first-registration order.
func (e *Engine) Components() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Bus returns the broker shared by this engine's contexts.
func (e *Engine) Bus() *bus.Broker { return e.bus }

func (e *Engine) launch(ctx context.Context, reg *registration) {
	reg.state.Store(int32(StateRunning))
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		name := reg.component.Name()
		if err := runComponent(ctx, reg); err != nil {
			reg.state.Store(int32(StateFailed))
			e.reporter.Report(ctx, Failure{Kind: FailureComponentStart, Component: name, Err: err})
			return
		}

		reg.state.Store(int32(StateCompleted))
		e.logger.Debug("engine.component.completed", "component", name)
	}()
}

func runComponent(ctx context.Context, reg *registration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component panicked: %v", r)
		}
	}()

	return reg.component.Start(ctx, reg.ctx)
}

func (e *Engine) baseContext() context.Context {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.runCtx == nil {
		return context.Background()
	}
	return e.runCtx
}
