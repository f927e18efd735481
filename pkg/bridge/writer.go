package bridge

import (
	"errors"
	"net/http"
	"sync"

	"apibridge/pkg/httpx"
)

// ErrResponseSealed is returned for writes after the invocation resolved or
// the response was ended.
var ErrResponseSealed = errors.New("response already finalized")

// observedWriter wraps the host response. It behaves like the host writer
// for the application, reports the first End through onEnd, and refuses
// writes once the invocation has resolved.
type observedWriter struct {
	// header belongs to the application goroutine; it is copied to the host
	// writer when the status is committed.
	header http.Header
	onEnd  func()

	mu     sync.Mutex
	w      httpx.ResponseWriter
	status int
	ended  bool
	sealed bool
}

func newObservedWriter(w httpx.ResponseWriter, onEnd func()) *observedWriter {
	h := make(http.Header)
	for k, v := range w.Header() {
		h[k] = append([]string(nil), v...)
	}
	return &observedWriter{header: h, onEnd: onEnd, w: w}
}

func (o *observedWriter) Header() http.Header { return o.header }

func (o *observedWriter) WriteHeader(status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed || o.ended || o.status != 0 {
		return
	}
	o.commitLocked(status)
}

func (o *observedWriter) Write(b []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed || o.ended {
		return 0, ErrResponseSealed
	}
	if o.status == 0 {
		o.commitLocked(http.StatusOK)
	}
	return o.w.Write(b)
}

// End is the terminal write primitive. The first call reports completion;
// later calls are no-ops.
func (o *observedWriter) End() error {
	o.mu.Lock()
	if o.sealed {
		o.mu.Unlock()
		return ErrResponseSealed
	}
	if o.ended {
		o.mu.Unlock()
		return nil
	}
	if o.status == 0 {
		o.commitLocked(http.StatusOK)
	}
	o.ended = true
	o.mu.Unlock()
	o.onEnd()
	return nil
}

// Flush lets streaming applications push buffered data to the host.
func (o *observedWriter) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed || o.ended {
		return
	}
	if o.status == 0 {
		o.commitLocked(http.StatusOK)
	}
	if f, ok := o.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (o *observedWriter) commitLocked(status int) {
	dst := o.w.Header()
	for k, v := range o.header {
		dst[k] = append([]string(nil), v...)
	}
	o.w.WriteHeader(status)
	o.status = status
}

// seal finalizes the response and blocks further writes. With errStatus set
// and nothing committed yet, the error payload is written directly to the
// host writer, bypassing headers the application staged. With commit set,
// an uncommitted response is committed as 200 so staged headers are sent.
// It returns the status the host will see (0 when nothing was written).
func (o *observedWriter) seal(errStatus int, errBody interface{}, commit bool) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed {
		return o.status
	}
	o.sealed = true
	if o.status != 0 {
		return o.status
	}
	switch {
	case errStatus != 0:
		_ = httpx.WriteJSON(o.w, errStatus, errBody)
		o.status = errStatus
	case commit:
		o.commitLocked(http.StatusOK)
	}
	return o.status
}
