package logger

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSafeHeadersRedacts(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "sid=1")
	h.Set("X-Api-Key", "k")
	h.Set("Accept", "application/json")
	got := SafeHeaders(h)
	if strings.Contains(got, "secret") || strings.Contains(got, "sid=1") {
		t.Fatalf("sensitive value leaked: %s", got)
	}
	want := "Accept=application/json; Authorization=<redacted>; Cookie=<redacted>; X-Api-Key=<redacted>"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogging_InitWithFileSink(t *testing.T) {
	p := filepath.Join(t.TempDir(), "apibridge.log")
	t.Setenv("APIBRIDGE_LOG_SINK", "file:"+p)
	prev := Log
	defer func() { Log = prev }()

	InitWithLevel("debug")
	Named("bridge").Info("invocation_failed")
	LogRequest("GET", "/transactions", "127.0.0.1:1", http.Header{})
	Sync()

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"logger":"bridge"`) || !strings.Contains(out, "incoming_request") {
		t.Fatalf("unexpected log output %s", out)
	}
}
