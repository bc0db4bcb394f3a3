package ainit

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/config"
)

var loaded bool

func init() {
	var revision string
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, curr := range info.Settings {
			if curr.Key == "vcs.revision" {
				revision = curr.Value
				break
			}
		}
	}

	if !config.IsProductionMode() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().
		Str("arch", runtime.GOARCH).
		Str("os", runtime.GOOS).
		Str("go_version", strings.TrimPrefix(runtime.Version(), "go")).
		Str("git_commit", revision).
		Msg("starting loginguard")

	zerolog.SetGlobalLevel(logLevel())
	log.Info().Str("environment", os.Getenv("ENVIRONMENT")).Str("level", zerolog.GlobalLevel().String()).Msg("configured logging")

	loaded = true
}

func logLevel() zerolog.Level {
	if config.IsDebugLoggingEnabled() {
		return zerolog.TraceLevel
	}

	if config.IsProductionMode() {
		return zerolog.InfoLevel
	}

	return zerolog.DebugLevel
}

// Loaded reports whether logging has been set up. Importing this package is what sets it up.
func Loaded() bool {
	return loaded
}
