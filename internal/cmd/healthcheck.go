package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/healthcheck"
)

var (
	host           string
	useConfig      bool
	timeoutSeconds int
	ignoreBadTLS   bool
)

func init() {
	healthCheckCmd.Flags().StringVar(&host, "host", "", "host to check")
	healthCheckCmd.Flags().BoolVarP(&useConfig, "useconfig", "c", false, "read server address from config file")
	healthCheckCmd.Flags().IntVarP(&timeoutSeconds, "timeout", "t", 3, "timeout (in seconds)")
	healthCheckCmd.Flags().BoolVar(&ignoreBadTLS, "ignore-bad-tls", false, "ignore bad certificates for HTTPS")
}

func hostFromConfig() (string, error) {
	if err := config.Init(); err != nil {
		return "", err
	}

	config.Lock.RLock()
	defer config.Lock.RUnlock()

	scheme := "http"
	if viper.GetBool(config.KeyTLSEnabled) {
		scheme = "https"
	}

	port := viper.GetInt(config.KeyServerPort)
	if port == 0 {
		port = config.DefaultServerPort
	}

	return fmt.Sprintf("%s://localhost:%d", scheme, port), nil
}

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "checks the health of loginguard",
	Long: "checks the health of a running loginguard instance. This is best used as a " +
		"defined healthcheck inside a docker container",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !useConfig && host == "" {
			return errors.New("loginguard: healthcheck: one of --useconfig or --host must be specified")
		}

		hostToCheck := host
		if useConfig {
			var err error
			hostToCheck, err = hostFromConfig()
			if err != nil {
				log.Error().Err(err).Msg("could not read config")
				return err
			}
		}

		err := healthcheck.CheckHealth(hostToCheck, time.Duration(timeoutSeconds)*time.Second, ignoreBadTLS)
		if err != nil {
			log.Error().Err(err).Str("host", hostToCheck).Msg("health check failed")
			return err
		}

		log.Info().Str("host", hostToCheck).Msg("health check ok")
		return nil
	},
}
