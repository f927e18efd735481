// Package application defines the capability the bridge invokes once per
// request, and the ways of obtaining one from a conventional HTTP app.
package application

import (
	"net/http"
	"strconv"

	"apibridge/pkg/httpx"
)

// Capability is the opaque HTTP application. Serve handles one normalized
// request. A nil return means the response is complete; an error (or a
// panic) means the application failed.
type Capability interface {
	Serve(w httpx.ResponseWriter, r *httpx.Request) error
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(w httpx.ResponseWriter, r *httpx.Request) error

func (f CapabilityFunc) Serve(w httpx.ResponseWriter, r *httpx.Request) error { return f(w, r) }

// FromHTTP wraps a path-routed net/http application. The handler sees the
// normalized path and query on r.URL.
func FromHTTP(h http.Handler) Capability {
	return CapabilityFunc(func(w httpx.ResponseWriter, r *httpx.Request) error {
		req, err := ToHTTPRequest(r)
		if err != nil {
			return err
		}
		h.ServeHTTP(w, req)
		return nil
	})
}

// ToHTTPRequest builds a server-side *http.Request from a normalized request.
func ToHTTPRequest(r *httpx.Request) (*http.Request, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL, r.Body)
	if err != nil {
		return nil, err
	}
	if r.Header != nil {
		req.Header = r.Header.Clone()
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	req.RemoteAddr = r.RemoteAddr
	req.RequestURI = r.URL
	if r.Body != nil {
		// unknown until read; a zero length would make proxies drop the body
		req.ContentLength = -1
		if n, err := strconv.ParseInt(req.Header.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
			req.ContentLength = n
		}
	}
	return req, nil
}
