package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"apibridge/pkg/application"
	"apibridge/pkg/config"
	"apibridge/pkg/launcher"
	"apibridge/pkg/logger"
)

// CapabilityLoader obtains the application capability. Implementations are
// chosen once at startup and must make Load idempotent.
type CapabilityLoader interface {
	Load(ctx context.Context) (application.Capability, error)
	// Source describes where the capability comes from, for logs and metrics.
	Source() string
	Close() error
}

// Select returns the loader for mode: the source tree for Development, the
// prebuilt artifact for anything else.
func Select(mode Mode, cfg config.AppConfig) CapabilityLoader {
	if mode == Development {
		return NewDevLoader(cfg)
	}
	return NewProdLoader(cfg)
}

// DevLoader runs the unbuilt application source with `go run` on first use.
type DevLoader struct {
	*processLoader
}

// NewDevLoader builds a DevLoader from the app section of the config.
func NewDevLoader(cfg config.AppConfig) *DevLoader {
	goBin := cfg.GoBinary
	if goBin == "" {
		goBin = "go"
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = "."
	}
	l := newProcessLoader("source:"+cfg.SourceDir, cfg, func() (launcher.Spec, error) {
		fi, err := os.Stat(cfg.SourceDir)
		if err != nil {
			return launcher.Spec{}, fmt.Errorf("source tree: %w", err)
		}
		if !fi.IsDir() {
			return launcher.Spec{}, fmt.Errorf("source tree %s is not a directory", cfg.SourceDir)
		}
		return launcher.Spec{
			Path: goBin,
			Args: []string{"run", pkg},
			Dir:  cfg.SourceDir,
		}, nil
	})
	return &DevLoader{processLoader: l}
}

// ProdLoader starts the prebuilt application artifact.
type ProdLoader struct {
	*processLoader
}

// NewProdLoader builds a ProdLoader from the app section of the config.
func NewProdLoader(cfg config.AppConfig) *ProdLoader {
	l := newProcessLoader("artifact:"+cfg.Artifact, cfg, func() (launcher.Spec, error) {
		bin, err := filepath.Abs(cfg.Artifact)
		if err != nil {
			return launcher.Spec{}, err
		}
		fi, err := os.Stat(bin)
		if err != nil {
			return launcher.Spec{}, fmt.Errorf("artifact: %w", err)
		}
		if fi.IsDir() || fi.Mode()&0o111 == 0 {
			return launcher.Spec{}, fmt.Errorf("artifact %s is not an executable file", bin)
		}
		return launcher.Spec{Path: bin}, nil
	})
	return &ProdLoader{processLoader: l}
}

// StaticLoader serves a capability linked into the host binary.
type StaticLoader struct {
	Name string
	Cap  application.Capability
}

func (s *StaticLoader) Load(context.Context) (application.Capability, error) {
	if s.Cap == nil {
		return nil, fmt.Errorf("static application %q not set", s.Name)
	}
	return s.Cap, nil
}

func (s *StaticLoader) Source() string { return "static:" + s.Name }

func (s *StaticLoader) Close() error { return nil }

// processLoader keeps one application child alive and hands out a proxy to
// it. A child that has exited is relaunched on the next Load.
type processLoader struct {
	source   string
	cfg      config.AppConfig
	prepare  func() (launcher.Spec, error)
	launches int

	mu    sync.Mutex
	h     *launcher.Handle
	proxy *application.Proxy
}

func newProcessLoader(source string, cfg config.AppConfig, prepare func() (launcher.Spec, error)) *processLoader {
	return &processLoader{source: source, cfg: cfg, prepare: prepare}
}

func (l *processLoader) Source() string { return l.source }

func (l *processLoader) Load(ctx context.Context) (application.Capability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h != nil && !l.h.Exited() {
		return l.proxy, nil
	}
	if l.h != nil {
		logger.Warn("app_child_exited", zap.String("source", l.source), zap.String("stderr", tail(l.h.Stderr.String(), 2048)))
		_ = l.proxy.Close()
		l.h, l.proxy = nil, nil
	}

	spec, err := l.prepare()
	if err != nil {
		return nil, err
	}
	l.launches++
	spec.Socket = filepath.Join(l.cfg.SocketDir, fmt.Sprintf("app-%d-%d.sock", os.Getpid(), l.launches))
	spec.ReadyTimeout = l.cfg.ReadyTimeout.Duration()
	proxy := application.NewProxy(spec.Socket)
	spec.ReadyCheck = proxy.Health

	start := time.Now()
	h, err := launcher.Start(ctx, spec)
	if err != nil {
		_ = proxy.Close()
		return nil, err
	}
	logger.Info("app_child_started",
		zap.String("source", l.source),
		zap.Int("pid", h.Cmd.Process.Pid),
		zap.String("socket", spec.Socket),
		zap.Duration("startup", time.Since(start)),
	)
	l.h, l.proxy = h, proxy
	return proxy, nil
}

func (l *processLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h == nil {
		return nil
	}
	timeout := l.cfg.StopTimeout.Duration()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	err := l.h.Stop(timeout)
	_ = l.proxy.Close()
	logger.Info("app_child_stopped", zap.String("source", l.source))
	l.h, l.proxy = nil, nil
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
