package bridge

import (
	"net/url"
	"strings"

	"apibridge/pkg/httpx"
)

// RoutePrefix is the routing prefix every inbound path carries and the
// application never sees.
const RoutePrefix = "/api"

// Normalize returns a copy of r addressed the way the application expects:
// the prefix is stripped from the path, Query holds the parsed query string
// and URL is the stripped path plus the original raw query. r itself is not
// modified.
func Normalize(r *httpx.Request) *httpx.Request {
	escPath, rawQuery, hasQuery := splitTarget(r.URL)
	escPath = StripPrefix(escPath)

	out := r.Clone()
	out.Path = escPath
	if p, err := url.PathUnescape(escPath); err == nil {
		out.Path = p
	}
	out.URL = escPath
	if hasQuery {
		out.URL += "?" + rawQuery
	}
	// malformed pairs are skipped; the well-formed ones are kept
	out.Query, _ = url.ParseQuery(rawQuery)
	return out
}

// StripPrefix removes RoutePrefix once from the start of p. An empty result
// becomes "/", and the result is always slash-rooted.
func StripPrefix(p string) string {
	p = strings.TrimPrefix(p, RoutePrefix)
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// splitTarget separates a request target into its escaped path and raw
// query. Origin-form targets keep a leading "//" as part of the path;
// absolute-form targets are reduced to their path.
func splitTarget(target string) (escPath, rawQuery string, hasQuery bool) {
	if u, err := url.ParseRequestURI(target); err == nil {
		return u.EscapedPath(), u.RawQuery, u.ForceQuery || u.RawQuery != ""
	}
	// a bare "%" in the path fails to parse; split at the first '?' instead.
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:], true
	}
	return target, "", false
}
