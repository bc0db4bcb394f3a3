package user

import (
	"github.com/spf13/viper"
	"golang.org/x/text/secure/precis"

	"github.com/lthummus/loginguard/internal/config"
)

func cleanPassword(input string) (string, error) {
	// escape hatch for accounts whose passwords were set before precis was applied and happen to contain code
	// points it rejects
	if viper.GetBool(config.KeyDisablePrecis) {
		return input, nil
	}
	return precis.OpaqueString.String(input)
}
