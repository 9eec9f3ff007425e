package core

import "github.com/google/uuid"

// EventFrame is broadcast by ComponentContext.Send. After emission it must
// be treated as immutable; it only lives for the duration of one dispatch.
type EventFrame struct {
	Source  string `json:"source"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// CallFrame requests execution of Endpoint on the component named Target.
// CorrelationID is freshly generated per call and is echoed by the
// ResultFrame that answers it.
type CallFrame struct {
	Target        string `json:"target"`
	CorrelationID string `json:"correlation_id"`
	Endpoint      string `json:"endpoint"`
	Params        Params `json:"params,omitempty"`
}

// ResultFrame carries the value returned by an endpoint handler back to the
// pending call holding the same CorrelationID.
type ResultFrame struct {
	Responder     string `json:"responder"`
	CorrelationID string `json:"correlation_id"`
	Value         any    `json:"value,omitempty"`
}

// IDGenerator mints correlation ids. Implementations must return values
// unique with overwhelming probability among concurrently pending calls.
type IDGenerator func() string

// NewID generates a new unique identifier for call correlation.
//
// Returns a string representation of a new random UUID.
func NewID() string { return uuid.NewString() }
