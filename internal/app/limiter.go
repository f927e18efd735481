package app

import (
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"apibridge/pkg/config"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
)

// limiterPool keeps one token bucket per client address. A nil pool allows
// everything.
type limiterPool struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	cfg config.RateLimitConfig
}

func newLimiterPool(cfg config.RateLimitConfig) *limiterPool {
	if cfg.RPS <= 0 {
		return nil
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), cfg: cfg}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = int(p.cfg.RPS) * 2
		if burst < 1 {
			burst = 1
		}
	}
	l := rate.NewLimiter(rate.Limit(p.cfg.RPS), burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	if p == nil {
		return true
	}
	return p.get(key).Allow()
}

func (p *limiterPool) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r.RemoteAddr)
		if !p.Allow(key) {
			logger.Debug("rate_limited", zap.String("remote", key), zap.String("path", r.URL.Path))
			_ = httpx.JSONError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
