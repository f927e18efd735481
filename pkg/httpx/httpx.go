package httpx

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is the unified request representation handed from a host to the
// bridge and from the bridge to the application.
// Handlers should prefer using Request.Ctx for cancellations/values.
type Request struct {
	Ctx    context.Context
	Method string
	// URL is the request target as received (path plus optional ?query).
	URL    string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is passed through untouched; nothing in the bridge parses it.
	Body       io.ReadCloser
	RemoteAddr string
	// Raw holds the underlying transport-specific request object
	// (e.g. *http.Request or *fasthttp.RequestCtx) for escape hatches.
	Raw interface{}
}

// Clone returns a shallow copy of r. Header and Query are deep-copied so the
// copy can be modified without touching the original.
func (r *Request) Clone() *Request {
	out := *r
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// Context returns r.Ctx, falling back to context.Background.
func (r *Request) Context() context.Context {
	if r.Ctx == nil {
		return context.Background()
	}
	return r.Ctx
}

// ResponseWriter is a small subset of http.ResponseWriter semantics
// that we require from adapters.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// Finisher is implemented by writers that expose an explicit terminal write.
type Finisher interface {
	End() error
}

// End signals that the response is complete when w supports it. Writers
// without a terminal primitive are finished when the handler returns.
func End(w ResponseWriter) error {
	if f, ok := w.(Finisher); ok {
		return f.End()
	}
	return nil
}

// HandlerFunc is the application handler signature used across adapters.
type HandlerFunc func(w ResponseWriter, r *Request)
