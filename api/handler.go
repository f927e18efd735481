// Package handler is the serverless function entry. Every request routed to
// /api/* by the platform lands in Handler.
package handler

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"apibridge/pkg/bridge"
	"apibridge/pkg/config"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
	"apibridge/pkg/resolver"
)

var (
	once    sync.Once
	entry   http.Handler
	initErr error
)

func bootstrap() {
	eff, err := config.LoadEffectiveConfig(config.Flags{Config: "./apibridge.yaml"})
	if err != nil {
		initErr = err
		return
	}
	logger.InitWithLevel(eff.Config.Logging.Level)
	mode := resolver.ParseMode(eff.Mode)
	res := resolver.New(resolver.Select(mode, eff.Config.App))
	adapter := bridge.New(res, bridge.WithTimeout(eff.Config.Bridge.Timeout.Duration()))
	entry = httpx.NetHTTPAdapter(adapter.Handler())
	logger.Info("function_ready", zap.String("mode", mode.String()), zap.String("source", res.Source()))
}

// Handler serves one function invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(bootstrap)
	if initErr != nil {
		logger.Error("function_init_failed", zap.Error(initErr))
		_ = httpx.JSONError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	entry.ServeHTTP(w, r)
}
