package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db/sqlite"
	"github.com/lthummus/loginguard/internal/handlers"
	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/trueip"
)

func RunServer() {
	err := config.Init()
	var fileNotFoundError viper.ConfigFileNotFoundError

	if errors.As(err, &fileNotFoundError) {
		log.Error().Err(err).Msg("no config file found")
		config.RunErrorServer([]string{"no config file found; create `loginguard.yaml` or set `CONFIG_FILE_PATH`"})
		os.Exit(1)
	}

	configErrors := config.ValidateConfig()
	if configErrors != nil {
		log.Error().Msg("invalid configuration")
		config.RunErrorServer(configErrors)
		os.Exit(1)
	}

	config.Lock.RLock()
	port := viper.GetInt(config.KeyServerPort)
	if port == 0 {
		log.Warn().Int("port", config.DefaultServerPort).Msg("no port specified, using default port")
		port = config.DefaultServerPort
	}
	config.Lock.RUnlock()

	database, err := sqlite.NewSQLiteFromConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize database")
	}

	userCount, err := database.CountUsers(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("could not count users")
	}
	if userCount == 0 {
		log.Warn().Msg("no users exist yet; add one with the `useradd` command")
	}

	tracker := loginlimit.NewFromConfig()

	e := handlers.Env{
		Database: database,
		Logins:   loginlimit.NewLoginService(tracker),
		Proxies:  trueip.NewResolverFromConfig(),
	}
	log.Info().Msg("services initialized")

	listenEnableDebugLogging()

	log.Info().Msg("listeners installed")

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
		Handler:      e.BuildRouter(),
	}

	log.Info().Int("port", port).Msg("starting server")
	go func() {
		if viper.GetBool(config.KeyTLSEnabled) {
			keyFile := viper.GetString(config.KeyTLSKeyFile)
			certFile := viper.GetString(config.KeyTLSCertFile)
			log.Info().Int("port", port).Str("key_file", keyFile).Str("cert_file", certFile).Msg("starting with tls enabled")
			if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Panic().Err(err).Msg("error starting server")
			}
		} else {
			log.Info().Int("port", port).Msg("starting plain HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Panic().Err(err).Msg("error starting server")
			}
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	<-c

	log.Warn().Msg("interrupt received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		log.Info().Msg("shutting down server")
		err := srv.Shutdown(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("error shutting down server")
		}
		wg.Done()
	}()
	go func() {
		log.Info().Msg("closing database")
		err := database.Close()
		if err != nil {
			log.Warn().Err(err).Msg("error closing database")
		}
		wg.Done()
	}()
	wg.Wait()

	tracker.Stop()
	log.Info().Msg("shutdown complete")

	os.Exit(0)
}
