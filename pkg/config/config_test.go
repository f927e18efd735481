package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvMode, EnvConfig, "APIBRIDGE_ADDR", "APIBRIDGE_PORT", "APIBRIDGE_TRANSPORT",
		"APIBRIDGE_MAX_BODY_SIZE", "APIBRIDGE_TIMEOUT", "APIBRIDGE_APP_SOURCE_DIR",
		"APIBRIDGE_APP_PACKAGE", "APIBRIDGE_APP_ARTIFACT", "APIBRIDGE_APP_SOCKET_DIR",
		"APIBRIDGE_LOG_LEVEL", "APIBRIDGE_RATE_RPS", "APIBRIDGE_RATE_BURST",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "apibridge.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return p
}

func TestConfig_LoadAndResolve(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "server:\n  address: 127.0.0.1\n  port: 9090\n  max_body_size: 8MiB\nbridge:\n  timeout: 30s\napp:\n  artifact: ./bin/budget\n  ready_timeout: 5\nlogging:\n  level: debug\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Server.Port != 9090 || c.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %s", c.Addr())
	}
	if c.Server.MaxBodySize != 8<<20 {
		t.Fatalf("expected 8MiB got %d", c.Server.MaxBodySize)
	}
	if c.Bridge.Timeout.Duration() != 30*time.Second {
		t.Fatalf("expected 30s timeout got %s", c.Bridge.Timeout.Duration())
	}
	if c.App.ReadyTimeout.Duration() != 5*time.Second {
		t.Fatalf("numeric durations are seconds, got %s", c.App.ReadyTimeout.Duration())
	}
	// untouched keys keep their defaults
	if c.Server.Transport != TransportNetHTTP || c.App.SourceDir != "./backend" {
		t.Fatalf("defaults lost: %+v", c)
	}

	t.Setenv(EnvConfig, p)
	if got := ResolveConfigPath("/nope", false); got != p {
		t.Fatalf("ResolveConfigPath expected %q got %q", p, got)
	}
	if got := ResolveConfigPath("/explicit", true); got != "/explicit" {
		t.Fatalf("explicit flag must win, got %q", got)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	c := Defaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if c.Bridge.Timeout.Duration() != 25*time.Second {
		t.Fatalf("unexpected default timeout %s", c.Bridge.Timeout.Duration())
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Defaults()
	c.Server.Transport = "grpc"
	c.Server.Port = 70000
	c.Bridge.Timeout = -1
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"server.transport", "server.port", "bridge.timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, "development")
	t.Setenv("APIBRIDGE_ADDR", "127.0.0.1:4000")
	t.Setenv("APIBRIDGE_TIMEOUT", "0")
	t.Setenv("APIBRIDGE_APP_SOURCE_DIR", "/srv/budget")
	t.Setenv("APIBRIDGE_RATE_RPS", "2.5")

	c := Defaults()
	res, err := ApplyEnvOverrides(c)
	if err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}
	if !res.EnvUsed || res.Mode != "development" {
		t.Fatalf("unexpected result %+v", res)
	}
	if c.Addr() != "127.0.0.1:4000" || c.Bridge.Timeout != 0 || c.App.SourceDir != "/srv/budget" || c.RateLimit.RPS != 2.5 {
		t.Fatalf("overrides not applied: %+v", c)
	}
}

func TestApplyEnvOverridesMalformed(t *testing.T) {
	clearEnv(t)
	t.Setenv("APIBRIDGE_PORT", "eighty")
	t.Setenv("APIBRIDGE_MAX_BODY_SIZE", "lots")
	_, err := ApplyEnvOverrides(Defaults())
	if err == nil || !strings.Contains(err.Error(), "APIBRIDGE_PORT") || !strings.Contains(err.Error(), "APIBRIDGE_MAX_BODY_SIZE") {
		t.Fatalf("expected both malformed values reported, got %v", err)
	}
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "server:\n  port: 5000\n  transport: fasthttp\nbridge:\n  timeout: 10s\n")
	t.Setenv("APIBRIDGE_TIMEOUT", "3s")

	fs := flag.NewFlagSet("apibridge", flag.ContinueOnError)
	flags, err := ParseConfigFlags(fs, []string{"--config", p, "--transport", "nethttp", "--addr", "127.0.0.1:7000"})
	if err != nil {
		t.Fatalf("ParseConfigFlags: %v", err)
	}
	eff, err := LoadEffectiveConfig(flags)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig: %v", err)
	}
	if eff.Addr != "127.0.0.1:7000" {
		t.Fatalf("flag addr should win, got %s", eff.Addr)
	}
	if eff.Config.Server.Transport != TransportNetHTTP {
		t.Fatalf("flag transport should win, got %s", eff.Config.Server.Transport)
	}
	if eff.Config.Bridge.Timeout.Duration() != 3*time.Second {
		t.Fatalf("env should beat file, got %s", eff.Config.Bridge.Timeout.Duration())
	}
	if strings.Join(eff.Sources, ",") != "config,env,flags" {
		t.Fatalf("unexpected sources %v", eff.Sources)
	}
}

func TestLoadEffectiveConfigMissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	eff, err := LoadEffectiveConfig(Flags{Config: missing})
	if err != nil {
		t.Fatalf("implicit missing config should fall back to defaults: %v", err)
	}
	if strings.Join(eff.Sources, ",") != "defaults" || eff.Addr != "0.0.0.0:3000" {
		t.Fatalf("unexpected effective config %+v", eff)
	}

	if _, err := LoadEffectiveConfig(Flags{Config: missing, Set: map[string]bool{"config": true}}); err == nil {
		t.Fatalf("explicit --config must exist")
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]SizeBytes{"": 0, "1024": 1024, "4MiB": 4 << 20, "1MB": 1000000}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil || got != want {
			t.Errorf("ParseSize(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := ParseSize("big"); err == nil {
		t.Errorf("expected error for garbage size")
	}
}
