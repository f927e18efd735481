package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"apibridge/pkg/bridge"
	"apibridge/pkg/config"
)

const banner = `
   __ _ _ __ (_) |__  _ __(_) __| | __ _  ___
  / _' | '_ \| | '_ \| '__| |/ _' |/ _' |/ _ \
 | (_| | |_) | | |_) | |  | | (_| | (_| |  __/
  \__,_| .__/|_|_.__/|_|  |_|\__,_|\__, |\___|
       |_|                         |___/
`

// Info is what the startup summary shows.
type Info struct {
	Eff     config.EffectiveConfigResult
	Mode    string
	Source  string
	Version string
}

// Print writes the startup banner and the effective settings to w.
func Print(w io.Writer, info Info) {
	cfg := info.Eff.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	addr := info.Eff.Addr
	if addr == "" {
		addr = cfg.Addr()
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:    %s (%s)\n", addr, cfg.Server.Transport)
	fmt.Fprintf(w, "Mode:      %s\n", info.Mode)
	fmt.Fprintf(w, "App:       %s\n", info.Source)
	if t := cfg.Bridge.Timeout.Duration(); t > 0 {
		fmt.Fprintf(w, "Timeout:   %s\n", t)
	} else {
		fmt.Fprintln(w, "Timeout:   disabled")
	}
	fmt.Fprintf(w, "Max body:  %s\n", humanize.IBytes(uint64(cfg.Server.MaxBodySize)))
	if info.Version != "" {
		fmt.Fprintf(w, "Version:   %s\n", info.Version)
	}
	if len(info.Eff.Sources) > 0 {
		fmt.Fprintf(w, "Config sources: %s\n", strings.Join(info.Eff.Sources, ", "))
	}

	fmt.Fprintln(w, "\n== Endpoints ==================================================")
	fmt.Fprintf(w, "ANY  %s/*  - forwarded to the application with the prefix removed\n", bridge.RoutePrefix)
	fmt.Fprintln(w, "GET  /healthz, /readyz, /metrics")
	fmt.Fprintln(w, "\n== Logs: =================================================")
}
