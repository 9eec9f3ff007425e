package core

// Request is the immutable view of an endpoint invocation handed to a
// Handler. The params map is copied on construction and on every Params
// call so a handler can never mutate the caller's frame.
type Request struct {
	endpoint      string
	correlationID string
	params        Params
}

// NewRequest builds a Request for the given endpoint and correlation id.
func NewRequest(endpoint, correlationID string, params Params) *Request {
	return &Request{
		endpoint:      endpoint,
		correlationID: correlationID,
		params:        params.Clone(),
	}
}

// Endpoint returns the name of the invoked endpoint.
func (r *Request) Endpoint() string { return r.endpoint }

// CorrelationID returns the id binding this request to the caller's pending call.
func (r *Request) CorrelationID() string { return r.correlationID }

// Params returns a copy of the call parameters.
func (r *Request) Params() Params { return r.params.Clone() }

// Len reports the number of supplied parameters.
func (r *Request) Len() int { return len(r.params) }

// Get returns the raw value for key and whether it was supplied.
func (r *Request) Get(key string) (any, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Has reports whether key was supplied.
func (r *Request) Has(key string) bool {
	_, ok := r.params[key]
	return ok
}

// String returns the value for key if it was supplied as a string.
func (r *Request) String(key string) (string, bool) {
	s, ok := r.params[key].(string)
	return s, ok
}
