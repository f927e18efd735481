package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"apibridge/pkg/banner"
	"apibridge/pkg/bridge"
	"apibridge/pkg/config"
	"apibridge/pkg/logger"
	"apibridge/pkg/metrics"
	"apibridge/pkg/resolver"
)

// App encapsulates the local host process: the resolver, the invocation
// adapter and the transport that feeds it.
type App struct {
	eff     config.EffectiveConfigResult
	mode    resolver.Mode
	version string

	res     *resolver.Resolver
	adapter *bridge.Adapter
	limiter *limiterPool

	srv     *http.Server
	fastSrv *fasthttp.Server
}

// New builds the resolver and adapter for eff. loader may be nil, in which
// case the loader is picked from the deployment mode. Nothing is started
// until Run.
func New(eff config.EffectiveConfigResult, loader resolver.CapabilityLoader, version string) (*App, error) {
	if eff.Config == nil {
		return nil, errors.New("app: nil config")
	}
	if err := eff.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mode := resolver.ParseMode(eff.Mode)
	if loader == nil {
		loader = resolver.Select(mode, eff.Config.App)
	}
	metrics.Register()

	res := resolver.New(loader)
	a := &App{
		eff:     eff,
		mode:    mode,
		version: version,
		res:     res,
		adapter: bridge.New(res,
			bridge.WithTimeout(eff.Config.Bridge.Timeout.Duration()),
			bridge.WithLogger(logger.Named("bridge").With(zap.String("mode", mode.String()))),
		),
		limiter: newLimiterPool(eff.Config.RateLimit),
	}
	return a, nil
}

// Resolver exposes the application resolver, mostly for cleanup.
func (a *App) Resolver() *resolver.Resolver { return a.res }

// Adapter exposes the invocation adapter.
func (a *App) Adapter() *bridge.Adapter { return a.adapter }

// Run prints the banner, starts the configured transport and blocks until
// ctx is canceled or the server fails. The server is shut down before Run
// returns; the resolver is left to the caller's cleanup.
func (a *App) Run(ctx context.Context) error {
	banner.Print(os.Stdout, banner.Info{
		Eff:     a.eff,
		Mode:    a.mode.String(),
		Source:  a.res.Source(),
		Version: a.version,
	})

	var errCh <-chan error
	switch a.eff.Config.Server.Transport {
	case config.TransportFastHTTP:
		errCh = a.startFastHTTP()
	default:
		errCh = a.startHTTP()
	}
	logger.Info("server_listening",
		zap.String("addr", a.addr()),
		zap.String("transport", a.eff.Config.Server.Transport),
		zap.String("mode", a.mode.String()),
	)

	select {
	case <-ctx.Done():
		return a.shutdown(5 * time.Second)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) addr() string {
	if a.eff.Addr != "" {
		return a.eff.Addr
	}
	return a.eff.Config.Addr()
}

func (a *App) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if a.srv != nil {
		return a.srv.Shutdown(ctx)
	}
	if a.fastSrv != nil {
		// in-flight requests see their context canceled once Shutdown
		// closes the server; the deadline still bounds the wait.
		errCh := make(chan error, 1)
		go func() { errCh <- a.fastSrv.Shutdown() }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return fmt.Errorf("fasthttp shutdown: %w", ctx.Err())
		}
	}
	return nil
}
