// Package appserve is linked into applications run behind the bridge. It
// serves the application on the unix socket the bridge hands over through
// APIBRIDGE_APP_SOCKET, or on a TCP address when run standalone.
package appserve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"apibridge/pkg/launcher"
	"apibridge/pkg/logger"
)

// Listen opens the listener the application should serve on.
func Listen(fallbackAddr string) (net.Listener, error) {
	if socketPath := os.Getenv(launcher.SocketEnv); socketPath != "" {
		// remove old socket
		_ = os.Remove(socketPath)
		l, err := net.Listen("unix", socketPath)
		if err != nil {
			return nil, fmt.Errorf("listen socket: %w", err)
		}
		_ = os.Chmod(socketPath, 0o600)
		return l, nil
	}
	if fallbackAddr == "" {
		fallbackAddr = ":8080"
	}
	return net.Listen("tcp", fallbackAddr)
}

// Serve runs h until ctx is canceled, then shuts the server down.
func Serve(ctx context.Context, h http.Handler, fallbackAddr string) error {
	l, err := Listen(fallbackAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	logger.Info("app_listening", zap.String("addr", l.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
