package app

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"apibridge/pkg/bridge"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
)

// newRouter returns a router that leaves request paths as sent, so
// "/api//x" reaches the application instead of a 301 redirect.
func (a *App) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)
	a.setupOpsHandlers(r)
	return r
}

// setupOpsHandlers registers the endpoints the host answers itself.
func (a *App) setupOpsHandlers(r *mux.Router) {
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.JSONError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
}

// Handler returns the net/http handler for the local host: ops endpoints
// plus every path under the route prefix forwarded through the adapter.
func (a *App) Handler() http.Handler {
	r := a.newRouter()
	r.PathPrefix(bridge.RoutePrefix).Handler(a.limitBody(httpx.NetHTTPAdapter(a.adapter.Handler())))
	if a.limiter != nil {
		r.Use(a.limiter.middleware)
	}
	return r
}

func (a *App) limitBody(next http.Handler) http.Handler {
	limit := a.eff.Config.Server.MaxBodySize.Int64()
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > limit {
			_ = httpx.JSONError(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// readyzHandler reports ready once the application resolves.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := a.res.Resolve(r.Context()); err != nil {
		logger.Warn("readyz_not_ready", zap.Error(err))
		_ = httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": ver,
		"source":  a.res.Source(),
	})
}

// healthzHandler handles the /healthz endpoint.
func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startHTTP starts the net/http server in a goroutine and returns a channel
// that will contain any server error.
func (a *App) startHTTP() <-chan error {
	srv := a.eff.Config.Server
	a.srv = &http.Server{
		Addr:         a.addr(),
		Handler:      a.Handler(),
		ReadTimeout:  srv.ReadTimeout.Duration(),
		WriteTimeout: srv.WriteTimeout.Duration(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}

// FastHandler returns the fasthttp handler. Ops endpoints go through the
// net/http router; the route prefix is served natively.
func (a *App) FastHandler() fasthttp.RequestHandler {
	ops := fasthttpadaptor.NewFastHTTPHandler(a.newRouter())
	api := httpx.FastHTTPAdapter(a.adapter.Handler())
	prefix := []byte(bridge.RoutePrefix)

	return func(ctx *fasthttp.RequestCtx) {
		if !a.limiter.Allow(ctx.RemoteIP().String()) {
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"Too Many Requests"}`)
			return
		}
		// ctx.Path() is normalized; route on the path as sent
		if bytes.HasPrefix(ctx.URI().PathOriginal(), prefix) {
			api(ctx)
			return
		}
		ops(ctx)
	}
}

func (a *App) startFastHTTP() <-chan error {
	srv := a.eff.Config.Server
	a.fastSrv = &fasthttp.Server{
		Handler:            a.FastHandler(),
		Name:               "apibridge",
		MaxRequestBodySize: int(srv.MaxBodySize.Int64()),
		ReadTimeout:        srv.ReadTimeout.Duration(),
		WriteTimeout:       srv.WriteTimeout.Duration(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.fastSrv.ListenAndServe(a.addr())
	}()
	return errCh
}
