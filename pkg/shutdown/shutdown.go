package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"apibridge/pkg/logger"
)

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and returns a
// cancellable context. The returned context is cancelled when any of the
// watched signals arrives. Use the cancel function to stop watching and to
// release resources.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("signal_received", zap.String("msg", "shutdown requested"))
		}
	}()
	return ctx, stop
}

// Cleanups runs registered functions in reverse order of registration.
type Cleanups struct {
	mu  sync.Mutex
	fns []namedFn
}

type namedFn struct {
	name string
	fn   func(context.Context) error
}

// Add registers fn under name.
func (c *Cleanups) Add(name string, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, namedFn{name: name, fn: fn})
}

// Run executes all cleanups (LIFO) within timeout, logging failures.
func (c *Cleanups) Run(timeout time.Duration) {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i].fn(ctx); err != nil {
			logger.Error("cleanup_failed", zap.String("name", fns[i].name), zap.Error(err))
		}
	}
	_ = os.Stdout.Sync()
}
