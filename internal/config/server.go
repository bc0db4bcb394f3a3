package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func errorPageHandler(errorsFound []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("loginguard could not start because of configuration errors:\n\n")
		for _, curr := range errorsFound {
			sb.WriteString("  - ")
			sb.WriteString(curr)
			sb.WriteString("\n")
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(sb.String()))
	}
}

// RunErrorServer serves a page listing errorsFound until interrupted. It exists so a misconfigured instance says
// what is wrong instead of crash looping.
func RunErrorServer(errorsFound []string) {
	port := viper.GetInt(KeyServerPort)
	if port == 0 {
		port = DefaultServerPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", errorPageHandler(errorsFound))

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
		Handler:      mux,
	}

	go func() {
		log.Warn().Int("port", port).Msg("starting error message server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic().Err(err).Msg("error starting server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("error shutting down server")
	}
}
