// Package bridge turns one host invocation into one application call and
// reports exactly one completion back to the host, whatever the application
// does.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"apibridge/pkg/application"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
	"apibridge/pkg/metrics"
)

var (
	// ErrApplicationPanic wraps a value recovered from the application.
	ErrApplicationPanic = errors.New("application panicked")
	// ErrTimeout is reported when the watchdog resolves an invocation.
	ErrTimeout = errors.New("invocation timed out")
)

// Resolver is the part of resolver.Resolver the adapter depends on.
type Resolver interface {
	Resolve(ctx context.Context) (application.Capability, error)
	Invalidate()
}

// Result describes how one invocation ended.
type Result struct {
	Outcome Outcome
	// Status is what the host sent, 0 if nothing was written.
	Status   int
	Err      error
	Duration time.Duration
}

// Adapter is the invocation adapter. It is safe for concurrent use; each
// Invoke owns its own state.
type Adapter struct {
	resolver     Resolver
	timeout      time.Duration
	log          *zap.Logger
	errorBody    interface{}
	timeoutBody  interface{}
	recordMetric bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the watchdog deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithLogger replaces the process logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithMetrics toggles Prometheus recording.
func WithMetrics(enabled bool) Option {
	return func(a *Adapter) { a.recordMetric = enabled }
}

// WithErrorBody replaces the JSON payload sent on application failure.
func WithErrorBody(v interface{}) Option {
	return func(a *Adapter) { a.errorBody = v }
}

// New returns an Adapter that resolves the application through r.
func New(r Resolver, opts ...Option) *Adapter {
	a := &Adapter{
		resolver:     r,
		log:          logger.Named("bridge"),
		errorBody:    map[string]string{"error": http.StatusText(http.StatusInternalServerError)},
		timeoutBody:  map[string]string{"error": http.StatusText(http.StatusGatewayTimeout)},
		recordMetric: true,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler exposes the adapter to the host transports.
func (a *Adapter) Handler() httpx.HandlerFunc {
	return func(w httpx.ResponseWriter, r *httpx.Request) {
		a.Invoke(w, r)
	}
}

// Invoke runs one invocation to completion. It never panics and always
// leaves w with either the application's response or an error payload.
func (a *Adapter) Invoke(w httpx.ResponseWriter, r *httpx.Request) Result {
	start := time.Now()
	if a.recordMetric {
		defer metrics.InvocationStarted()()
	}
	ctx := r.Context()
	req := Normalize(r)
	logger.LogRequest(req.Method, req.Path, req.RemoteAddr, req.Header)

	c := newCompletion()
	ow := newObservedWriter(w, func() { c.resolve(OutcomeCompleted, nil) })
	go a.run(ctx, c, ow, req)

	var timer <-chan time.Time
	if a.timeout > 0 {
		t := time.NewTimer(a.timeout)
		defer t.Stop()
		timer = t.C
	}

	var sig signal
	select {
	case sig = <-c.done():
	case <-timer:
		c.resolve(OutcomeTimedOut, fmt.Errorf("%w after %s", ErrTimeout, a.timeout))
		sig = <-c.done()
	case <-ctx.Done():
		c.resolve(OutcomeCanceled, ctx.Err())
		sig = <-c.done()
	}

	res := Result{Outcome: sig.outcome, Err: sig.err}
	switch sig.outcome {
	case OutcomeCompleted:
		res.Status = ow.seal(0, nil, true)
	case OutcomeAppError, OutcomeResolveError:
		res.Status = ow.seal(http.StatusInternalServerError, a.errorBody, false)
		a.log.Error("invocation_failed",
			zap.String("outcome", sig.outcome.String()),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", res.Status),
			zap.Error(sig.err),
		)
	case OutcomeTimedOut:
		res.Status = ow.seal(http.StatusGatewayTimeout, a.timeoutBody, false)
		a.log.Warn("invocation_timeout",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Duration("timeout", a.timeout),
			zap.Int("status", res.Status),
		)
	case OutcomeCanceled:
		res.Status = ow.seal(0, nil, false)
		a.log.Debug("invocation_canceled", zap.String("path", req.Path), zap.Error(sig.err))
	}
	res.Duration = time.Since(start)
	if a.recordMetric {
		metrics.RecordInvocation(req.Method, res.Outcome.String(), res.Status, res.Duration)
	}
	return res
}

// run resolves the application and serves req on its own goroutine so the
// watchdog and host cancellation can resolve the invocation without it.
func (a *Adapter) run(ctx context.Context, c *completion, ow *observedWriter, req *httpx.Request) {
	// a cold start outlives the invocation that triggered it
	app, err := a.resolver.Resolve(context.WithoutCancel(ctx))
	if err != nil {
		c.resolve(OutcomeResolveError, err)
		return
	}

	err = a.serve(app, ow, req)
	if errors.Is(err, application.ErrUpstream) {
		a.resolver.Invalidate()
	}
	if err != nil {
		if !c.resolve(OutcomeAppError, err) {
			// the invocation already resolved; nothing left to send
			a.log.Warn("late_application_error", zap.String("path", req.Path), zap.Error(err))
		}
		return
	}
	// returning is an implicit end
	c.resolve(OutcomeCompleted, nil)
}

func (a *Adapter) serve(app application.Capability, ow *observedWriter, req *httpx.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				err = fmt.Errorf("%w: %v", application.ErrUpstream, p)
				return
			}
			a.log.Error("application_panic", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrApplicationPanic, p)
		}
	}()
	return app.Serve(ow, req)
}
