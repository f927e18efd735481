package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"apibridge/pkg/httpx"
)

// ErrUpstream is returned when a proxied application cannot be reached or
// drops the exchange.
var ErrUpstream = errors.New("application upstream failed")

// Proxy is a capability backed by an application process serving HTTP on a
// unix socket.
type Proxy struct {
	socket string
	rp     *httputil.ReverseProxy
	httpc  *http.Client
}

type proxyErrKey struct{}

// NewProxy returns a capability that forwards each invocation to the
// application listening on socket.
func NewProxy(socket string) *Proxy {
	tr := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	p := &Proxy{socket: socket, httpc: &http.Client{Transport: tr, Timeout: 2 * time.Second}}
	target := &url.URL{Scheme: "http", Host: "unix"}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			pr.SetXForwarded()
		},
		Transport:     tr,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if slot, ok := r.Context().Value(proxyErrKey{}).(*error); ok {
				*slot = err
			}
		},
	}
	return p
}

// Socket returns the unix socket path the proxy dials.
func (p *Proxy) Socket() string { return p.socket }

// Serve forwards r to the application and copies its response into w.
func (p *Proxy) Serve(w httpx.ResponseWriter, r *httpx.Request) error {
	req, err := ToHTTPRequest(r)
	if err != nil {
		return err
	}
	var proxyErr error
	req = req.WithContext(context.WithValue(req.Context(), proxyErrKey{}, &proxyErr))
	p.rp.ServeHTTP(w, req)
	if proxyErr != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, proxyErr)
	}
	return nil
}

// Health reports whether the application answers on its socket. Any HTTP
// response counts as alive.
func (p *Proxy) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	_ = resp.Body.Close()
	return nil
}

// Close releases idle upstream connections.
func (p *Proxy) Close() error {
	p.httpc.CloseIdleConnections()
	return nil
}
