package logger

import (
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-api-key":     {},
}

func redactHeaderValue(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitive[strings.ToLower(k)]; ok {
		return "<redacted>"
	}
	return v
}

// SafeHeaders returns a compact string representation of headers suitable for
// logging with sensitive values redacted.
func SafeHeaders(h http.Header) string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		parts = append(parts, k+"="+redactHeaderValue(k, v[0]))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// LogRequest logs a concise, safe summary of an incoming host request.
func LogRequest(method, path, remote string, h http.Header) {
	Log.Debug("incoming_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("remote", remote),
		zap.String("headers", SafeHeaders(h)),
	)
}
