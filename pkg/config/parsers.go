package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr      string
	Config    string
	Transport string
	Set       map[string]bool
}

// EnvResult describes what the environment contributed.
type EnvResult struct {
	EnvUsed bool
	// Mode is the raw deployment-mode value; empty when unset.
	Mode string
}

// EffectiveConfigResult is the merged configuration plus provenance.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Mode   string
	// Sources lists the layers that contributed, e.g. "config", "env".
	Sources []string
}

// ParseConfigFlags parses command-line flags into a Flags struct.
func ParseConfigFlags(fset *flag.FlagSet, args []string) (Flags, error) {
	addrPtr := fset.String("addr", "", "HTTP listen address (host:port)")
	cfgPtr := fset.String("config", "./apibridge.yaml", "Path to config file")
	trPtr := fset.String("transport", "", "Host transport: nethttp or fasthttp")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}
	setFlags := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, Config: *cfgPtr, Transport: *trPtr, Set: setFlags}, nil
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyEnvOverrides applies environment overrides onto cfg. Malformed
// numeric values are reported rather than silently ignored.
func ApplyEnvOverrides(cfg *Config) (EnvResult, error) {
	var res EnvResult
	var errs []error
	res.Mode = os.Getenv(EnvMode)

	if v := os.Getenv("APIBRIDGE_ADDR"); v != "" {
		res.EnvUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("APIBRIDGE_PORT"); v != "" {
		res.EnvUsed = true
		if pi, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Server.Port = pi
		} else {
			errs = append(errs, fmt.Errorf("APIBRIDGE_PORT: %w", err))
		}
	}
	if v := os.Getenv("APIBRIDGE_TRANSPORT"); v != "" {
		res.EnvUsed = true
		cfg.Server.Transport = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("APIBRIDGE_MAX_BODY_SIZE"); v != "" {
		res.EnvUsed = true
		if s, err := ParseSize(v); err == nil {
			cfg.Server.MaxBodySize = s
		} else {
			errs = append(errs, fmt.Errorf("APIBRIDGE_MAX_BODY_SIZE: %w", err))
		}
	}
	if v := os.Getenv("APIBRIDGE_TIMEOUT"); v != "" {
		res.EnvUsed = true
		if d, err := ParseDuration(v); err == nil {
			cfg.Bridge.Timeout = d
		} else {
			errs = append(errs, fmt.Errorf("APIBRIDGE_TIMEOUT: %w", err))
		}
	}
	if v := os.Getenv("APIBRIDGE_APP_SOURCE_DIR"); v != "" {
		res.EnvUsed = true
		cfg.App.SourceDir = v
	}
	if v := os.Getenv("APIBRIDGE_APP_PACKAGE"); v != "" {
		res.EnvUsed = true
		cfg.App.Package = v
	}
	if v := os.Getenv("APIBRIDGE_APP_ARTIFACT"); v != "" {
		res.EnvUsed = true
		cfg.App.Artifact = v
	}
	if v := os.Getenv("APIBRIDGE_APP_SOCKET_DIR"); v != "" {
		res.EnvUsed = true
		cfg.App.SocketDir = v
	}
	if v := os.Getenv("APIBRIDGE_LOG_LEVEL"); v != "" {
		res.EnvUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("APIBRIDGE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			res.EnvUsed = true
			cfg.RateLimit.RPS = f
		} else {
			errs = append(errs, fmt.Errorf("APIBRIDGE_RATE_RPS: %w", err))
		}
	}
	if v := os.Getenv("APIBRIDGE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			res.EnvUsed = true
			cfg.RateLimit.Burst = n
		} else {
			errs = append(errs, fmt.Errorf("APIBRIDGE_RATE_BURST: %w", err))
		}
	}
	return res, errors.Join(errs...)
}

// LoadEffectiveConfig layers defaults, the config file, environment
// overrides and explicitly set flags (in that order of precedence) and
// validates the result.
func LoadEffectiveConfig(flags Flags) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	cfg, fileExists, err := ParseConfigFile(flags)
	if err != nil {
		return res, err
	}
	// If user explicitly passed --config, require the file to exist.
	if flags.Set["config"] && !fileExists {
		return res, fmt.Errorf("config file %s not found", flags.Config)
	}
	if fileExists {
		res.Sources = append(res.Sources, "config")
	}

	envRes, err := ApplyEnvOverrides(cfg)
	if err != nil {
		return res, err
	}
	if envRes.EnvUsed {
		res.Sources = append(res.Sources, "env")
	}
	res.Mode = envRes.Mode

	flagsUsed := false
	if flags.Set["addr"] {
		flagsUsed = true
		h, _, err := net.SplitHostPort(flags.Addr)
		if err != nil {
			return res, fmt.Errorf("invalid --addr %q: %w", flags.Addr, err)
		}
		cfg.Server.Address = h
		cfg.Server.Port = parsePortFromAddr(flags.Addr)
	}
	if flags.Set["transport"] {
		flagsUsed = true
		cfg.Server.Transport = strings.ToLower(strings.TrimSpace(flags.Transport))
	}
	if flagsUsed {
		res.Sources = append(res.Sources, "flags")
	}
	if len(res.Sources) == 0 {
		res.Sources = append(res.Sources, "defaults")
	}

	if err := cfg.Validate(); err != nil {
		return res, err
	}
	res.Config = cfg
	res.Addr = cfg.Addr()
	return res, nil
}

// parsePortFromAddr extracts port integer from host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
