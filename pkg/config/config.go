package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvMode selects the deployment mode; only "development" is special.
	EnvMode   = "APIBRIDGE_ENV"
	EnvConfig = "APIBRIDGE_CONFIG"

	TransportNetHTTP  = "nethttp"
	TransportFastHTTP = "fasthttp"
)

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 3000
	cfg.Server.Transport = TransportNetHTTP
	cfg.Server.MaxBodySize = 4 << 20
	cfg.Server.ReadTimeout = Duration(10 * time.Second)
	cfg.Server.WriteTimeout = Duration(60 * time.Second)
	cfg.Bridge.Timeout = Duration(25 * time.Second)
	cfg.App.SourceDir = "./backend"
	cfg.App.Package = "."
	cfg.App.GoBinary = "go"
	cfg.App.Artifact = "./.build/server"
	cfg.App.SocketDir = filepath.Join(os.TempDir(), "apibridge")
	cfg.App.ReadyTimeout = Duration(60 * time.Second)
	cfg.App.StopTimeout = Duration(5 * time.Second)
	cfg.Logging.Level = "info"
	return cfg
}

// Addr returns host:port for HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 3000
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads a YAML file on top of Defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the host cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.Transport {
	case TransportNetHTTP, TransportFastHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: out of range: %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, errors.New("server.max_body_size: must not be negative"))
	}
	if c.Bridge.Timeout < 0 {
		errs = append(errs, errors.New("bridge.timeout: must not be negative"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit: rps and burst must not be negative"))
	}
	if strings.TrimSpace(c.App.SocketDir) == "" {
		errs = append(errs, errors.New("app.socket_dir: required"))
	}
	return errors.Join(errs...)
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `APIBRIDGE_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return flagPath
}
