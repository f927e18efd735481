// Package launcher starts application child processes that serve HTTP on a
// unix socket, waits for them to become ready, and stops them again.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// SocketEnv is the variable a child reads to learn where to listen.
const SocketEnv = "APIBRIDGE_APP_SOCKET"

// ErrNotReady is returned when a child does not create its socket in time.
var ErrNotReady = errors.New("child not ready")

// Spec describes one child process.
type Spec struct {
	// Path is the executable; Args are passed after it.
	Path string
	Args []string
	Dir  string
	// Env is appended to the parent's environment.
	Env          []string
	Socket       string
	ReadyTimeout time.Duration
	// ReadyCheck, if set, is polled after the socket appears until it succeeds.
	ReadyCheck func(ctx context.Context) error
}

// Handle represents a running child.
type Handle struct {
	Cmd *exec.Cmd
	// captured output from child process
	Stdout syncBuffer
	Stderr syncBuffer

	socket string
	// done is closed once cmd.Wait returns; err holds its result
	done chan struct{}
	err  error
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Start launches spec and blocks until the child is ready, ctx is done, the
// child exits, or the readiness deadline passes.
func Start(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("launcher: empty executable path")
	}
	if spec.Socket == "" {
		return nil, fmt.Errorf("launcher: empty socket path")
	}
	if err := os.MkdirAll(filepath.Dir(spec.Socket), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir socket dir: %w", err)
	}
	// a stale socket from a previous child would satisfy readiness early
	_ = os.Remove(spec.Socket)

	// not CommandContext: the child must outlive the ctx of the
	// invocation that happened to launch it
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Env = append(cmd.Env, SocketEnv+"="+spec.Socket)
	// own process group so grandchildren (go run's compiled binary) are
	// signalled together
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &Handle{Cmd: cmd, socket: spec.Socket, done: make(chan struct{})}
	cmd.Stdout = io.MultiWriter(os.Stdout, &h.Stdout)
	cmd.Stderr = io.MultiWriter(os.Stderr, &h.Stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start child: %w", err)
	}
	// reap the child and report its exit
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()

	timeout := spec.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := h.waitReady(ctx, spec, time.Now().Add(timeout)); err != nil {
		_ = h.Stop(time.Second)
		return nil, err
	}
	return h, nil
}

func (h *Handle) waitReady(ctx context.Context, spec Spec, deadline time.Time) error {
	for {
		ready := false
		if _, err := os.Stat(spec.Socket); err == nil {
			ready = spec.ReadyCheck == nil || spec.ReadyCheck(ctx) == nil
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: socket %s not available; stdout=%q stderr=%q",
				ErrNotReady, spec.Socket, h.Stdout.String(), h.Stderr.String())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return fmt.Errorf("child exited before ready: %v; stderr=%q", h.err, h.Stderr.String())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Socket returns the socket path the child was told to listen on.
func (h *Handle) Socket() string { return h.socket }

// Exited reports whether the child process has terminated.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM to the child's process group and waits up to timeout
// before killing it.
func (h *Handle) Stop(timeout time.Duration) error {
	if h == nil || h.Cmd == nil || h.Cmd.Process == nil {
		return nil
	}
	if h.Exited() {
		return nil
	}
	pgid := h.Cmd.Process.Pid
	_ = unix.Kill(-pgid, unix.SIGTERM)
	defer os.Remove(h.socket)
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		_ = unix.Kill(-pgid, unix.SIGKILL)
		<-h.done
		return fmt.Errorf("child killed after timeout")
	}
}
