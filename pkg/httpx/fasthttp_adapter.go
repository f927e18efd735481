package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter adapts an httpx.HandlerFunc into a fasthttp.RequestHandler.
// Request.Ctx is canceled when the handler returns or the server shuts
// down. fasthttp does not report client disconnects to handlers.
func FastHTTPAdapter(h HandlerFunc) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		// only the done channel is captured; ctx is recycled once we return
		if done := ctx.Done(); done != nil {
			go func() {
				select {
				case <-done:
					cancel()
				case <-cctx.Done():
				}
			}()
		}

		// build headers
		hdr := make(http.Header)
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			key := http.CanonicalHeaderKey(string(k))
			hdr[key] = append(hdr[key], string(v))
		})

		// fasthttp recycles ctx after the handler returns, so the body is
		// copied rather than aliased.
		body := io.NopCloser(bytes.NewReader(append([]byte(nil), ctx.PostBody()...)))

		req := &Request{
			Ctx:        cctx,
			Method:     string(ctx.Method()),
			URL:        string(ctx.RequestURI()),
			Path:       string(ctx.Path()),
			Header:     hdr,
			Body:       body,
			RemoteAddr: ctx.RemoteAddr().String(),
			Raw:        ctx,
		}

		rw := &fastHTTPResponseWriter{ctx: ctx, header: make(http.Header)}
		// populate initial headers from response
		ctx.Response.Header.VisitAll(func(k, v []byte) {
			key := http.CanonicalHeaderKey(string(k))
			rw.header[key] = append(rw.header[key], string(v))
		})

		h(rw, req)

		// ensure request body closed
		if req.Body != nil {
			_ = req.Body.Close()
		}
	}
}

type fastHTTPResponseWriter struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
	status int
}

func (f *fastHTTPResponseWriter) Header() http.Header { return f.header }

func (f *fastHTTPResponseWriter) WriteHeader(status int) {
	if f.status != 0 {
		return
	}
	f.status = status
	// copy headers into fasthttp response header
	for k, vals := range f.header {
		for i, v := range vals {
			if i == 0 {
				f.ctx.Response.Header.Set(k, v)
				continue
			}
			f.ctx.Response.Header.Add(k, v)
		}
	}
	f.ctx.SetStatusCode(status)
}

func (f *fastHTTPResponseWriter) Write(b []byte) (int, error) {
	if f.status == 0 {
		f.WriteHeader(http.StatusOK)
	}
	return f.ctx.Write(b)
}
