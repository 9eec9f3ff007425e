package core

import (
	"context"

	"github.com/hupe1980/componentmesh/internal/util"
)

// ValidationError reports the first parameter rejected by EndpointSpec.Validate.
type ValidationError = util.ValidationError

// Handler serves an endpoint invocation. The returned value is broadcast
// unmodified to the caller. A returned error (or a panic) is reported on
// the responding side only; the caller observes a timeout.
type Handler func(ctx context.Context, req *Request) (any, error)

// EndpointSpec describes an endpoint published by a component.
type EndpointSpec struct {
	// Name is unique within one component context.
	Name string
	// Description is free text for tooling.
	Description string
	// Params documents accepted parameters. The dispatch path never enforces
	// it; handlers or external tooling may call Validate.
	Params []ParamSpec
}

// ParamSpec is advisory metadata for one endpoint parameter.
type ParamSpec struct {
	Name string
	// Type is a JSON schema type name ("string", "integer", "number",
	// "boolean", "array", "object"). Empty accepts any value.
	Type     string
	Required bool
	// Validator optionally checks the supplied value.
	Validator func(value any) error
}

// Validate checks params against s.Params: required parameters must be
// present, typed parameters must match and validators must accept their
// values. Unknown parameters are allowed. The first violation is returned
// as a *ValidationError.
func (s EndpointSpec) Validate(params Params) error {
	for _, p := range s.Params {
		value, exists := params[p.Name]
		if !exists {
			if p.Required {
				return util.NewValidationError(p.Name, nil, "required field is missing", nil)
			}
			continue
		}

		if !util.IsValidType(value, p.Type) {
			return util.NewValidationError(p.Name, value, "expected type "+p.Type+", got "+util.JSONType(value), nil)
		}

		if p.Validator != nil {
			if err := p.Validator(value); err != nil {
				return util.NewValidationError(p.Name, value, err.Error(), err)
			}
		}
	}

	return nil
}
