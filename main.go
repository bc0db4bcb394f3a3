package main

import (
	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/ainit"
	"github.com/lthummus/loginguard/internal/cmd"
)

func main() {
	log.Info().Bool("loaded", ainit.Loaded()).Msg("initializing services")
	cmd.Execute()
}
