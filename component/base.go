package component

import (
	"context"
	"fmt"

	"github.com/hupe1980/componentmesh/core"
)

// Base bundles identity helpers. Embed it in concrete component
// implementations and supply a Start method to satisfy core.Component.
type Base struct {
	name        string // Stable component name
	description string // Detailed description of the component's purpose
}

// NewBase constructs a Base with a generated description (customizable via SetDescription).
func NewBase(name string) Base {
	return Base{
		name:        name,
		description: fmt.Sprintf("Component %s", name),
	}
}

// Name returns the component name.
func (b *Base) Name() string { return b.name }

// Description returns a detailed description of this component's purpose.
func (b *Base) Description() string { return b.description }

// SetDescription updates the component's description.
func (b *Base) SetDescription(desc string) { b.description = desc }

// StartFunc is the signature of a component entry point.
type StartFunc func(ctx context.Context, mesh core.ComponentContext) error

// FuncComponent adapts a StartFunc to core.Component.
type FuncComponent struct {
	Base
	start StartFunc
}

// Func creates a component named name whose entry point is start. A nil
// start yields a component that only registers itself.
//
// Example:
//
//	users := component.Func("users", func(ctx context.Context, mesh core.ComponentContext) error {
//	    return mesh.AddEndpoint(core.EndpointSpec{Name: "getUser"}, getUser)
//	})
func Func(name string, start StartFunc) *FuncComponent {
	return &FuncComponent{Base: NewBase(name), start: start}
}

// Start implements core.Component.
func (f *FuncComponent) Start(ctx context.Context, mesh core.ComponentContext) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx, mesh)
}
