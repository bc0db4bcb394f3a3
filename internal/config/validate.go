package config

import (
	"fmt"
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func ValidateConfig() []string {
	var errorsFound []string

	if dbKind := viper.GetString(KeyDBKind); dbKind != "sqlite" {
		log.Error().Str("db.kind", dbKind).Msg("invalid db kind; must be sqlite")
		errorsFound = append(errorsFound, "invalid `db.kind`; must be `sqlite`")
	}

	if viper.GetString(KeyDBFile) == "" {
		log.Error().Msg("db.file is not set")
		errorsFound = append(errorsFound, "`db.file` is not set")
	}

	if viper.IsSet(KeyAttemptLimit) && viper.GetInt(KeyAttemptLimit) <= 0 {
		log.Error().Str("limit", viper.GetString(KeyAttemptLimit)).Msg("login attempt limit must be a positive number")
		errorsFound = append(errorsFound, "`security.login_attempts.limit` must be a positive number")
	}

	// GetDuration returns 0 for anything it can't parse, so this catches garbage as well as negatives
	if viper.IsSet(KeyAttemptWindow) && viper.GetDuration(KeyAttemptWindow) <= 0 {
		log.Error().Str("window", viper.GetString(KeyAttemptWindow)).Msg("login attempt window must be a positive duration")
		errorsFound = append(errorsFound, "`security.login_attempts.window` must be a positive duration (e.g. `1h`)")
	}

	if viper.IsSet(KeyAttemptMaxTracked) && viper.GetInt(KeyAttemptMaxTracked) < 0 {
		log.Error().Str("max_tracked", viper.GetString(KeyAttemptMaxTracked)).Msg("max tracked usernames can not be negative")
		errorsFound = append(errorsFound, "`security.login_attempts.max_tracked` can not be negative")
	}

	for _, curr := range viper.GetStringSlice(KeyTrustedProxies) {
		if _, err := netip.ParsePrefix(curr); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(curr); err == nil {
			continue
		}

		log.Error().Str("trusted_proxy", curr).Msg("trusted proxy is not an IP or CIDR")
		errorsFound = append(errorsFound, fmt.Sprintf("`security.trusted_proxies` entry `%s` is not an IP address or CIDR", curr))
	}

	return errorsFound
}
