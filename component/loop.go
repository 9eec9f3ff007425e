package component

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/componentmesh/core"
	"github.com/hupe1980/componentmesh/logging"
)

// ErrStop may be returned by a loop step to end the loop early without error.
var ErrStop = errors.New("stop loop")

// StepFunc is one iteration of a Loop. iteration starts at 1.
type StepFunc func(ctx context.Context, mesh core.ComponentContext, iteration int) (any, error)

// Loop is a component whose entry point runs a step repeatedly.
//
// Key features:
//   - Optional setup run once before the first iteration (e.g. AddEndpoint)
//   - Configurable maximum iteration limit
//   - Interval timing between iterations
//   - Custom termination predicate evaluated on each step result
//   - Flexible error handling (stop or continue)
//   - Context cancellation support
//
// Loop is suited to polling another component's endpoint until it answers,
// retrying calls that timed out, or emitting periodic events.
type Loop struct {
	Base
	setup       StartFunc
	step        StepFunc
	maxIters    int
	interval    time.Duration
	stopOnError bool
	predicate   func(result any) bool
	logger      logging.Logger
}

// LoopOption defines a configuration function for customizing Loop behavior.
type LoopOption func(*Loop)

// NewLoop constructs a looping component around step.
//
// Default configuration:
//   - Maximum 100 iterations
//   - No interval between iterations
//   - Stop execution on errors
//   - No termination predicate
func NewLoop(name string, step StepFunc, opts ...LoopOption) *Loop {
	l := &Loop{
		Base:        NewBase(name),
		step:        step,
		maxIters:    100,
		stopOnError: true,
		logger:      logging.NoOpLogger{},
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

// WithMaxIters sets the maximum number of iterations for the loop.
func WithMaxIters(n int) LoopOption {
	return func(l *Loop) { l.maxIters = n }
}

// WithInterval sets the time delay between loop iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) { l.interval = d }
}

// WithStopOnError controls whether a failing step ends the loop. When
// false, failures are logged and the loop continues.
func WithStopOnError(stop bool) LoopOption {
	return func(l *Loop) { l.stopOnError = stop }
}

// WithPredicate sets a termination condition on each successful step result.
//
// Example:
//
//	WithPredicate(func(result any) bool {
//	    return result != nil
//	})
func WithPredicate(pred func(result any) bool) LoopOption {
	return func(l *Loop) { l.predicate = pred }
}

// WithSetup runs fn once before the first iteration. A setup error ends
// the entry point.
func WithSetup(fn StartFunc) LoopOption {
	return func(l *Loop) { l.setup = fn }
}

// WithLoopLogger sets the logger used for iteration diagnostics.
func WithLoopLogger(logger logging.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Start implements core.Component by running the loop.
func (l *Loop) Start(ctx context.Context, mesh core.ComponentContext) error {
	if l.setup != nil {
		if err := l.setup(ctx, mesh); err != nil {
			return fmt.Errorf("loop %s setup failed: %w", l.Name(), err)
		}
	}

	if l.step == nil {
		return nil
	}

	for i := 1; i <= l.maxIters; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.logger.Debug("loop.iteration.start", "component", l.Name(), "iteration", i)

		result, err := l.step(ctx, mesh, i)
		if errors.Is(err, ErrStop) {
			l.logger.Debug("loop.stopped", "component", l.Name(), "iteration", i)
			return nil
		}

		if err != nil {
			if l.stopOnError {
				return fmt.Errorf("loop %s iteration %d failed: %w", l.Name(), i, err)
			}
			l.logger.Warn("loop.iteration.failed", "component", l.Name(), "iteration", i, "error", err.Error())
		} else if l.predicate != nil && l.predicate(result) {
			l.logger.Debug("loop.predicate.satisfied", "component", l.Name(), "iteration", i)
			return nil
		}

		if l.interval > 0 && i < l.maxIters {
			timer := time.NewTimer(l.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.logger.Debug("loop.completed", "component", l.Name(), "iterations", l.maxIters)

	return nil
}
