package resolver

import (
	"os"

	"apibridge/pkg/config"
)

// Mode is the process-wide deployment mode. It is read once at startup and
// never changes afterwards.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// ParseMode maps a raw indicator value to a Mode. Only the exact literal
// "development" selects Development; everything else, including an empty
// or unset value, is Production.
func ParseMode(v string) Mode {
	if v == string(Development) {
		return Development
	}
	return Production
}

// ModeFromEnv reads the indicator from the environment.
func ModeFromEnv() Mode {
	return ParseMode(os.Getenv(config.EnvMode))
}

func (m Mode) String() string { return string(m) }
