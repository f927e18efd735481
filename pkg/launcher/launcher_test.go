package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartWaitsForSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "child.sock")
	h, err := Start(context.Background(), Spec{
		Path:         "/bin/sh",
		Args:         []string{"-c", `echo "booting $APP_NAME"; sleep 0.2; touch "$` + SocketEnv + `"; exec sleep 30`},
		Env:          []string{"APP_NAME=budget"},
		Socket:       socket,
		ReadyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.Socket() != socket || h.Exited() {
		t.Fatalf("unexpected handle state")
	}
	if !strings.Contains(h.Stdout.String(), "booting budget") {
		t.Fatalf("child env or output lost: %q", h.Stdout.String())
	}
	if err := h.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !h.Exited() {
		t.Fatalf("child still running after Stop")
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("socket not removed: %v", err)
	}
}

func TestStartReadyCheckGatesReadiness(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "child.sock")
	calls := 0
	h, err := Start(context.Background(), Spec{
		Path:   "/bin/sh",
		Args:   []string{"-c", `touch "$` + SocketEnv + `"; exec sleep 30`},
		Socket: socket,
		ReadyCheck: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		},
		ReadyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop(time.Second)
	if calls < 3 {
		t.Fatalf("ready check polled %d times", calls)
	}
}

func TestStartNotReady(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "child.sock")
	_, err := Start(context.Background(), Spec{
		Path:         "/bin/sh",
		Args:         []string{"-c", "exec sleep 30"},
		Socket:       socket,
		ReadyTimeout: 300 * time.Millisecond,
	})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestStartChildExitsEarly(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "child.sock")
	_, err := Start(context.Background(), Spec{
		Path:         "/bin/sh",
		Args:         []string{"-c", "echo 'cannot find package' >&2; exit 1"},
		Socket:       socket,
		ReadyTimeout: 5 * time.Second,
	})
	if err == nil || !strings.Contains(err.Error(), "cannot find package") {
		t.Fatalf("expected early exit with stderr, got %v", err)
	}
}

func TestStartCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Start(ctx, Spec{
		Path:         "/bin/sh",
		Args:         []string{"-c", "exec sleep 30"},
		Socket:       filepath.Join(t.TempDir(), "child.sock"),
		ReadyTimeout: 10 * time.Second,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStartValidatesSpec(t *testing.T) {
	if _, err := Start(context.Background(), Spec{Socket: "/tmp/x.sock"}); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Start(context.Background(), Spec{Path: "/bin/sh"}); err == nil {
		t.Fatalf("expected error for empty socket")
	}
}
