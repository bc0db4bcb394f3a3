package pwmigrate

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"
)

func rehashDisabled() bool {
	config.Lock.RLock()
	defer config.Lock.RUnlock()

	return viper.GetBool(config.KeyDisableRehashOnLogin)
}

// RehashUser replaces u's stored hash with a fresh one of password. It does nothing if another rehash for the
// same user is already running. Failures are logged; the old hash stays usable.
func RehashUser(ctx context.Context, u *user.User, password string, database db.DB) {
	if rehashDisabled() {
		return
	}

	if !tryLockUser(u.Id) {
		log.Trace().Str("username", u.Username).Msg("rehash already in progress")
		return
	}
	defer unlockUser(u.Id)

	log.Info().Str("username", u.Username).Msg("password hash needs updating")

	if err := u.SetPassword(password); err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("unable to rehash password on login")
		return
	}

	if err := database.UpdatePassword(ctx, u); err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("could not persist updated password")
		return
	}

	log.Info().Str("username", u.Username).Msg("rehashed password")
}
