// Package resolver obtains the application capability the bridge invokes.
// The loading strategy is picked once per process from the deployment mode;
// the resolver caches whatever the loader produced.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"apibridge/pkg/application"
	"apibridge/pkg/logger"
	"apibridge/pkg/metrics"
)

// ErrResolve wraps every failure to obtain the application.
var ErrResolve = errors.New("resolve application")

// Resolver caches the capability produced by its loader. Failed loads are
// not cached.
type Resolver struct {
	loader CapabilityLoader

	mu  sync.Mutex
	cap application.Capability
}

// New returns a Resolver backed by loader.
func New(loader CapabilityLoader) *Resolver {
	return &Resolver{loader: loader}
}

// Resolve returns the application capability, loading it on first use.
func (r *Resolver) Resolve(ctx context.Context) (application.Capability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cap != nil {
		return r.cap, nil
	}
	start := time.Now()
	c, err := r.loader.Load(ctx)
	metrics.RecordResolve(r.loader.Source(), err, time.Since(start))
	if err != nil {
		logger.Error("resolve_failed", zap.String("source", r.loader.Source()), zap.Error(err))
		return nil, fmt.Errorf("%w from %s: %w", ErrResolve, r.loader.Source(), err)
	}
	logger.Debug("resolved", zap.String("source", r.loader.Source()), zap.Duration("took", time.Since(start)))
	r.cap = c
	return c, nil
}

// Invalidate drops the cached capability so the next Resolve consults the
// loader again. Used after the application became unreachable.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cap = nil
	r.mu.Unlock()
}

// Source describes the backing loader.
func (r *Resolver) Source() string { return r.loader.Source() }

// Close releases the loader (stopping any application child).
func (r *Resolver) Close() error {
	r.Invalidate()
	return r.loader.Close()
}
