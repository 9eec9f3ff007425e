package engine

import (
	"context"

	"github.com/hupe1980/componentmesh/logging"
)

// FailureKind identifies the boundary at which a failure was absorbed.
//
// The engine never propagates these failures to other components. Each
// kind marks a point where an error or panic is caught and handed to the
// configured Reporter instead:
//   - FailureComponentStart: a component entry point returned an error or panicked
//   - FailureEndpointHandler: an endpoint handler returned an error or panicked
//   - FailureListener: an event listener panicked during dispatch
type FailureKind string

const (
	// FailureComponentStart is reported when Component.Start fails.
	FailureComponentStart FailureKind = "component_start"

	// FailureEndpointHandler is reported when an endpoint handler fails.
	// The caller of that endpoint only ever observes a timeout.
	FailureEndpointHandler FailureKind = "endpoint_handler"

	// FailureListener is reported when an event listener panics. Remaining
	// listeners for the same frame still run.
	FailureListener FailureKind = "listener"
)

// Failure describes one absorbed error.
type Failure struct {
	// Kind is the boundary that caught the error.
	Kind FailureKind

	// Component is the name of the component on whose side the error occurred.
	Component string

	// Endpoint is set for FailureEndpointHandler.
	Endpoint string

	// CorrelationID is set for FailureEndpointHandler.
	CorrelationID string

	// Source and Event are set for FailureListener.
	Source, Event string

	// Err is the captured error. Panics are converted to errors.
	Err error
}

// Reporter is the single sink for every failure the engine swallows.
//
// Implementations should be:
//   - Fast: Report runs on the goroutine that caught the failure
//   - Safe: Report must not panic
type Reporter interface {
	Report(ctx context.Context, f Failure)
}

// ReporterFunc adapts a plain function to the Reporter interface.
//
// Example:
//
//	var r engine.Reporter = engine.ReporterFunc(func(ctx context.Context, f engine.Failure) {
//	    metrics.Inc(string(f.Kind))
//	})
type ReporterFunc func(ctx context.Context, f Failure)

// Report calls the wrapped function.
func (fn ReporterFunc) Report(ctx context.Context, f Failure) { fn(ctx, f) }

// LoggingReporter writes every failure to a Logger at error level.
type LoggingReporter struct {
	logger logging.Logger
}

// NewLoggingReporter creates a reporter backed by logger. A nil logger
// discards everything.
func NewLoggingReporter(logger logging.Logger) *LoggingReporter {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingReporter{logger: logger}
}

// Report logs f with all populated fields as structured attributes.
func (r *LoggingReporter) Report(_ context.Context, f Failure) {
	args := []any{"kind", string(f.Kind), "component", f.Component}
	if f.Endpoint != "" {
		args = append(args, "endpoint", f.Endpoint)
	}
	if f.CorrelationID != "" {
		args = append(args, "correlation_id", f.CorrelationID)
	}
	if f.Source != "" || f.Event != "" {
		args = append(args, "source", f.Source, "event", f.Event)
	}
	if f.Err != nil {
		args = append(args, "error", f.Err.Error())
	}
	r.logger.Error("engine.failure", args...)
}

// MultiReporter forwards each failure to several reporters in registration order.
//
// Unlike a callback chain there is no short-circuit: every reporter sees
// every failure.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter creates a fan-out reporter. Nil entries are skipped.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	m := &MultiReporter{}
	for _, r := range reporters {
		m.Add(r)
	}
	return m
}

// Add appends a reporter. It is not safe to call concurrently with Report.
func (m *MultiReporter) Add(r Reporter) {
	if r != nil {
		m.reporters = append(m.reporters, r)
	}
}

// Report forwards f to every registered reporter.
func (m *MultiReporter) Report(ctx context.Context, f Failure) {
	for _, r := range m.reporters {
		r.Report(ctx, f)
	}
}
