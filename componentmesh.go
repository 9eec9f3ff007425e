// Package componentmesh provides a high-level façade over engine.Engine for
// wiring independently written components into one process. Most
// applications interact with this package by:
//  1. Creating a Mesh via New() (optionally from a config file via WithConfig)
//  2. Registering components (component.Func, component.Loop or custom types)
//  3. Starting the mesh and optionally waiting for all entry points to return
//
// Components never reference each other. They exchange events and invoke
// each other's endpoints through the core.ComponentContext each receives on
// Start, addressed purely by component and endpoint names.
package componentmesh

import (
	"context"

	"github.com/hupe1980/componentmesh/bus"
	"github.com/hupe1980/componentmesh/config"
	"github.com/hupe1980/componentmesh/core"
	"github.com/hupe1980/componentmesh/engine"
	"github.com/hupe1980/componentmesh/logging"
)

// Options configures the Mesh instance.
type Options struct {
	// Engine configuration (default call timeout)
	EngineConfig engine.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Reporter receives swallowed failures. Defaults to logging them
	// through Logger.
	Reporter engine.Reporter

	// IDGenerator mints correlation ids (defaults to random UUIDs).
	IDGenerator core.IDGenerator

	// Bus may be shared between meshes in the same process.
	Bus *bus.Broker
}

// WithConfig applies a loaded configuration: the engine section sets the
// call timeout and the logging section builds the logger.
func WithConfig(cfg config.Config) func(o *Options) {
	return func(o *Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.Logger = logging.NewLogger(cfg.LoggerConfig())
	}
}

// Mesh is the high-level façade around the underlying engine.
type Mesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new Mesh instance with optional overrides.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Reporter = opts.Reporter
		o.IDGenerator = opts.IDGenerator
		o.Bus = opts.Bus
	})

	return &Mesh{opts: opts, engine: e}
}

// Register adds components to the underlying engine in order.
func (m *Mesh) Register(components ...core.Component) {
	for _, c := range components {
		m.engine.Register(c)
	}
}

// Start launches every registered component without waiting for them.
func (m *Mesh) Start(ctx context.Context) error { return m.engine.Start(ctx) }

// Wait blocks until all launched entry points have returned.
func (m *Mesh) Wait() { m.engine.Wait() }

// Run starts the mesh and waits for every entry point to return.
//
// Endpoints and listeners stay active after Run returns; a component whose
// only job is serving requests typically returns from Start immediately.
func (m *Mesh) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	m.Wait()
	return nil
}

// Context returns the communication handle of a registered component.
func (m *Mesh) Context(name string) (core.ComponentContext, bool) {
	mc, ok := m.engine.Context(name)
	if !ok {
		return nil, false
	}
	return mc, true
}

// Engine exposes the underlying engine for lookups and lifecycle state.
func (m *Mesh) Engine() *engine.Engine { return m.engine }
