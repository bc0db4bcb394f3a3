package loginlimit

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
)

func settingsFromConfig() Settings {
	config.Lock.RLock()
	defer config.Lock.RUnlock()

	s := Settings{
		Limit:  viper.GetInt(config.KeyAttemptLimit),
		Window: viper.GetDuration(config.KeyAttemptWindow),
	}

	// we do it this way so we don't mistakenly pollute the config file with our values
	if s.Limit <= 0 {
		s.Limit = DefaultAttemptLimit
	}

	if s.Window <= 0 {
		s.Window = DefaultWindow
	}

	if maxTracked := viper.GetInt(config.KeyAttemptMaxTracked); maxTracked > 0 {
		s.MaxTracked = uint64(maxTracked)
	}

	return s
}

// NewFromConfig builds a tracker from the current configuration and keeps its limit and window in step with later
// edits to the config file. The background reaper is started if the config asks for it; callers own stopping it.
func NewFromConfig() *AttemptTracker {
	s := settingsFromConfig()

	log.Info().
		Int("limit", s.Limit).
		Dur("window", s.Window).
		Uint64("max_tracked", s.MaxTracked).
		Msg("initializing login attempt tracker")

	if s.MaxTracked > 0 {
		log.Warn().
			Uint64("max_tracked", s.MaxTracked).
			Msg("login attempt tracking is capped; once the cap is hit the least recently used username loses its count, so a flood of usernames can lift a lockout early")
	}

	t := NewAttemptTracker(s)

	config.OnChange(t.reloadFromConfig)

	config.Lock.RLock()
	reaper := viper.GetBool(config.KeyAttemptReaper)
	config.Lock.RUnlock()

	if reaper {
		t.Start()
	}

	return t
}

func (t *AttemptTracker) reloadFromConfig(_ fsnotify.Event) {
	s := settingsFromConfig()
	if s.Limit == t.Limit() && s.Window == t.Window() {
		return
	}

	t.Reconfigure(s.Limit, s.Window)
}
