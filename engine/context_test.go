package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/componentmesh/component"
	"github.com/hupe1980/componentmesh/core"
	"github.com/hupe1980/componentmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 100 * time.Millisecond

func newTestEngine(t *testing.T) (*Engine, *testutil.Recorder[Failure]) {
	t.Helper()
	failures := testutil.NewRecorder[Failure]()
	eng := New(func(o *Options) {
		o.Config.DefaultCallTimeout = testTimeout
		o.Reporter = ReporterFunc(func(_ context.Context, f Failure) { failures.Record(f) })
	})
	return eng, failures
}

func register(t *testing.T, eng *Engine, name string) *Context {
	t.Helper()
	return eng.RegisterContext(component.Func(name, nil))
}

func constHandler(v any) core.Handler {
	return func(context.Context, *core.Request) (any, error) { return v, nil }
}

func TestContext_Call_UsersGetUser(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	user := map[string]any{"id": 1, "name": "abc", "description": "hello"}
	require.NoError(t, users.AddEndpoint(core.EndpointSpec{Name: "getUser"}, constHandler(user)))

	got, err := notes.Call(context.Background(), "users", "getUser", nil)
	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Equal(t, 0, notes.PendingCalls())
}

func TestContext_Call_ReturnsValueUnmodified(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	type payload struct{ N int }
	p := &payload{N: 7}
	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "ptr"}, constHandler(p)))

	got, err := caller.Call(context.Background(), "svc", "ptr", nil)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestContext_Call_PassesParams(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "echo"}, func(_ context.Context, req *core.Request) (any, error) {
		name, _ := req.String("name")
		return fmt.Sprintf("%s:%s", req.Endpoint(), name), nil
	}))

	got, err := caller.Call(context.Background(), "svc", "echo", core.Params{"name": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "echo:abc", got)
}

func TestContext_Call_UnknownTargetTimesOut(t *testing.T) {
	eng, _ := newTestEngine(t)
	notes := register(t, eng, "notes")

	start := time.Now()
	_, err := notes.Call(context.Background(), "ghost", "anything", nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCallTimeout))
	assert.GreaterOrEqual(t, elapsed, testTimeout, "must not settle before the timeout")
	assert.Equal(t, 0, notes.PendingCalls())
}

func TestContext_Call_UnknownEndpointTimesOut(t *testing.T) {
	eng, _ := newTestEngine(t)
	register(t, eng, "users")
	notes := register(t, eng, "notes")

	start := time.Now()
	_, err := notes.Call(context.Background(), "users", "missing", nil, core.WithTimeout(30*time.Millisecond))

	assert.ErrorIs(t, err, core.ErrCallTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestContext_Call_HandlerPanicSettlesOnlyByTimeout(t *testing.T) {
	eng, failures := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "boom"}, func(context.Context, *core.Request) (any, error) {
		panic("boom")
	}))

	start := time.Now()
	_, err := caller.Call(context.Background(), "svc", "boom", nil)

	assert.ErrorIs(t, err, core.ErrCallTimeout)
	assert.GreaterOrEqual(t, time.Since(start), testTimeout)
	assert.Equal(t, uint64(0), eng.Bus().Stats().ResultsPublished, "no result frame may be broadcast")

	require.True(t, failures.WaitFor(1, time.Second))
	f := failures.All()[0]
	assert.Equal(t, FailureEndpointHandler, f.Kind)
	assert.Equal(t, "svc", f.Component)
	assert.Equal(t, "boom", f.Endpoint)
	assert.NotEmpty(t, f.CorrelationID)
	assert.Contains(t, f.Err.Error(), "boom")
}

func TestContext_Call_HandlerErrorSettlesOnlyByTimeout(t *testing.T) {
	eng, failures := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	handlerErr := errors.New("db down")
	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "fail"}, func(context.Context, *core.Request) (any, error) {
		return nil, handlerErr
	}))

	_, err := caller.Call(context.Background(), "svc", "fail", nil)
	assert.ErrorIs(t, err, core.ErrCallTimeout)
	assert.NotErrorIs(t, err, handlerErr)

	require.True(t, failures.WaitFor(1, time.Second))
	assert.ErrorIs(t, failures.All()[0].Err, handlerErr)
	assert.Equal(t, uint64(0), eng.Bus().Stats().ResultsPublished)
}

func TestContext_Call_SlowHandlerResultAfterTimeoutIsIgnored(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	served := make(chan struct{})
	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "slow"}, func(context.Context, *core.Request) (any, error) {
		defer close(served)
		time.Sleep(3 * testTimeout)
		return "late", nil
	}))

	_, err := caller.Call(context.Background(), "svc", "slow", nil)
	assert.ErrorIs(t, err, core.ErrCallTimeout)

	// The responder keeps running and eventually broadcasts; nothing settles twice.
	<-served
	assert.Eventually(t, func() bool { return eng.Bus().Stats().ResultsPublished == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, caller.PendingCalls())
}

func TestContext_Call_ConcurrentCallsNeverCrossResolve(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "echo"}, func(_ context.Context, req *core.Request) (any, error) {
		n, _ := req.Get("n")
		// Answer in reverse order of arrival to shuffle result frames.
		time.Sleep(time.Duration(50-n.(int)) * time.Millisecond / 10)
		return n, nil
	}))

	const calls = 50
	var wg sync.WaitGroup
	results := make([]any, calls)
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = caller.Call(context.Background(), "svc", "echo", core.Params{"n": i}, core.WithTimeout(time.Second))
		}(i)
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, i, results[i])
	}
	assert.Equal(t, 0, caller.PendingCalls())
}

func TestContext_Call_FirstResultWins(t *testing.T) {
	eng, _ := newTestEngine(t)
	deps := contextDeps{
		bus:      eng.bus,
		logger:   eng.logger,
		reporter: eng.reporter,
		newID:    eng.newID,
		timeout:  testTimeout,
		baseCtx:  context.Background,
	}

	// Two contexts answering for the same component name.
	a := newContext("dup", deps)
	b := newContext("dup", deps)
	caller := newContext("caller", deps)

	require.NoError(t, a.AddEndpoint(core.EndpointSpec{Name: "who"}, constHandler("a")))
	require.NoError(t, b.AddEndpoint(core.EndpointSpec{Name: "who"}, constHandler("b")))

	got, err := caller.Call(context.Background(), "dup", "who", nil)
	require.NoError(t, err)
	assert.Contains(t, []any{"a", "b"}, got)

	assert.Eventually(t, func() bool { return eng.Bus().Stats().ResultsPublished == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, caller.PendingCalls())
}

func TestContext_Call_ContextCancellation(t *testing.T) {
	eng, _ := newTestEngine(t)
	caller := register(t, eng, "caller")

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := caller.CallAsync(ctx, "ghost", "x", nil, core.WithTimeout(time.Minute))
	cancel()

	select {
	case res := <-resultCh:
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("call did not settle after cancellation")
	}
	assert.Equal(t, 0, caller.PendingCalls())
}

func TestContext_Call_AlreadyCancelledContextDoesNotBroadcast(t *testing.T) {
	eng, _ := newTestEngine(t)
	caller := register(t, eng, "caller")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := caller.Call(ctx, "ghost", "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), eng.Bus().Stats().CallsPublished)
}

func TestContext_Call_UsesInjectedCorrelationIDs(t *testing.T) {
	failures := testutil.NewRecorder[Failure]()
	eng := New(func(o *Options) {
		o.Config.DefaultCallTimeout = testTimeout
		o.IDGenerator = testutil.SequentialIDs("call")
		o.Reporter = ReporterFunc(func(_ context.Context, f Failure) { failures.Record(f) })
	})
	svc := eng.RegisterContext(component.Func("svc", nil))
	caller := eng.RegisterContext(component.Func("caller", nil))

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "id"}, func(_ context.Context, req *core.Request) (any, error) {
		return req.CorrelationID(), nil
	}))

	first, err := caller.Call(context.Background(), "svc", "id", nil)
	require.NoError(t, err)
	second, err := caller.Call(context.Background(), "svc", "id", nil)
	require.NoError(t, err)

	assert.Equal(t, "call-1", first)
	assert.Equal(t, "call-2", second)
}

func TestContext_RequestParamsAreIsolated(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "mutate"}, func(_ context.Context, req *core.Request) (any, error) {
		p := req.Params()
		p["k"] = "changed"
		v, _ := req.Get("k")
		return v, nil
	}))

	params := core.Params{"k": "original"}
	got, err := caller.Call(context.Background(), "svc", "mutate", params)
	require.NoError(t, err)
	assert.Equal(t, "original", got)
	assert.Equal(t, "original", params["k"])
}

func TestContext_ParamSpecIsAdvisory(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	spec := core.EndpointSpec{
		Name:   "strict",
		Params: []core.ParamSpec{{Name: "id", Type: "integer", Required: true}},
	}
	require.NoError(t, svc.AddEndpoint(spec, func(_ context.Context, req *core.Request) (any, error) {
		return spec.Validate(req.Params()) != nil, nil
	}))

	invalid, err := caller.Call(context.Background(), "svc", "strict", nil)
	require.NoError(t, err, "the handler still runs with missing params")
	assert.Equal(t, true, invalid)
}

func TestContext_AddEndpoint_Duplicate(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "v"}, constHandler("first")))

	err := svc.AddEndpoint(core.EndpointSpec{Name: "v"}, constHandler("second"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateEndpoint)

	got, err := caller.Call(context.Background(), "svc", "v", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", got, "the second handler never becomes active")
}

func TestContext_AddEndpoint_Invalid(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")

	assert.ErrorIs(t, svc.AddEndpoint(core.EndpointSpec{Name: " "}, constHandler(1)), core.ErrInvalidEndpoint)
	assert.ErrorIs(t, svc.AddEndpoint(core.EndpointSpec{Name: "x"}, nil), core.ErrInvalidEndpoint)
	assert.Empty(t, svc.Endpoints())
}

func TestContext_RemoveEndpoint(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")
	caller := register(t, eng, "caller")

	err := svc.RemoveEndpoint("never")
	assert.ErrorIs(t, err, core.ErrEndpointNotFound)

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "v"}, constHandler(1)))
	require.NoError(t, svc.RemoveEndpoint("v"))
	assert.ErrorIs(t, svc.RemoveEndpoint("v"), core.ErrEndpointNotFound)

	_, err = caller.Call(context.Background(), "svc", "v", nil, core.WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, core.ErrCallTimeout)

	// The name is free again.
	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "v"}, constHandler(2)))
}

func TestContext_Endpoints(t *testing.T) {
	eng, _ := newTestEngine(t)
	svc := register(t, eng, "svc")

	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "b"}, constHandler(1)))
	require.NoError(t, svc.AddEndpoint(core.EndpointSpec{Name: "a", Description: "first"}, constHandler(1)))

	specs := svc.Endpoints()
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "first", specs[0].Description)
	assert.Equal(t, "b", specs[1].Name)
}

func TestContext_Listener_FiresExactlyOnceAcrossUnsubscribe(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	var got []any
	l := core.NewListener(func(payload any) { got = append(got, payload) })

	notes.AddListener("users", "created", l)
	users.Send("created", "abc")
	notes.RemoveListener("users", "created", l)
	users.Send("created", "def")

	assert.Equal(t, []any{"abc"}, got)
}

func TestContext_Listener_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	count := 0
	l := core.NewListener(func(any) { count++ })

	notes.AddListener("users", "created", l)
	notes.AddListener("users", "created", l)
	users.Send("created", nil)

	assert.Equal(t, 1, count)

	// One removal clears the single registration.
	notes.RemoveListener("users", "created", l)
	users.Send("created", nil)
	assert.Equal(t, 1, count)
}

func TestContext_Listener_MatchesSourceAndEvent(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	other := register(t, eng, "other")
	notes := register(t, eng, "notes")

	count := 0
	notes.AddListener("users", "created", core.NewListener(func(any) { count++ }))

	other.Send("created", nil) // wrong source
	users.Send("deleted", nil) // wrong event
	users.Send("created", nil) // match

	assert.Equal(t, 1, count)
}

func TestContext_Listener_RegistrationOrderAndSynchronousDelivery(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")
	audit := register(t, eng, "audit")

	var order []string
	notes.AddListener("users", "created", core.NewListener(func(any) { order = append(order, "notes-1") }))
	audit.AddListener("users", "created", core.NewListener(func(any) { order = append(order, "audit-1") }))
	notes.AddListener("users", "created", core.NewListener(func(any) { order = append(order, "notes-2") }))

	users.Send("created", nil)

	// Delivered before Send returned; contexts in registration order, listeners in registration order.
	assert.Equal(t, []string{"notes-1", "notes-2", "audit-1"}, order)
}

func TestContext_Listener_LateContextDoesNotReceivePastEvents(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	users.Send("created", "early")

	late := register(t, eng, "late")
	var got []any
	late.AddListener("users", "created", core.NewListener(func(p any) { got = append(got, p) }))
	users.Send("created", "later")

	assert.Equal(t, []any{"later"}, got)
}

func TestContext_Listener_PanicIsReportedAndIsolated(t *testing.T) {
	eng, failures := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	reached := false
	notes.AddListener("users", "created", core.NewListener(func(any) { panic("bad listener") }))
	notes.AddListener("users", "created", core.NewListener(func(any) { reached = true }))

	assert.NotPanics(t, func() { users.Send("created", nil) })
	assert.True(t, reached)

	require.Equal(t, 1, failures.Len())
	f := failures.All()[0]
	assert.Equal(t, FailureListener, f.Kind)
	assert.Equal(t, "notes", f.Component)
	assert.Equal(t, "users", f.Source)
	assert.Equal(t, "created", f.Event)
}

func TestContext_Listener_CanSendReentrantly(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	var got []any
	notes.AddListener("users", "created", core.NewListener(func(p any) {
		notes.Send("noted", p)
	}))
	users.AddListener("notes", "noted", core.NewListener(func(p any) { got = append(got, p) }))

	users.Send("created", "abc")
	assert.Equal(t, []any{"abc"}, got)
}

func TestContext_Dispose(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	require.NoError(t, users.AddEndpoint(core.EndpointSpec{Name: "getUser"}, constHandler("u")))
	count := 0
	users.AddListener("notes", "ping", core.NewListener(func(any) { count++ }))

	users.Dispose()
	users.Dispose() // idempotent
	assert.True(t, users.Disposed())

	notes.Send("ping", nil)
	assert.Equal(t, 0, count)

	_, err := notes.Call(context.Background(), "users", "getUser", nil, core.WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, core.ErrCallTimeout)

	// Endpoints survive disposal.
	require.Len(t, users.Endpoints(), 1)
	assert.ErrorIs(t, users.AddEndpoint(core.EndpointSpec{Name: "getUser"}, constHandler("again")), core.ErrDuplicateEndpoint)
}

func TestContext_DisposedCallerTimesOut(t *testing.T) {
	eng, _ := newTestEngine(t)
	users := register(t, eng, "users")
	notes := register(t, eng, "notes")

	require.NoError(t, users.AddEndpoint(core.EndpointSpec{Name: "getUser"}, constHandler("u")))
	notes.Dispose()

	// The call frame still goes out, but the disposed caller no longer hears results.
	_, err := notes.Call(context.Background(), "users", "getUser", nil, core.WithTimeout(50*time.Millisecond))
	assert.ErrorIs(t, err, core.ErrCallTimeout)
}
