package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/trueip"
)

type Env struct {
	Database db.DB
	Logins   loginlimit.LoginService
	Proxies  *trueip.Resolver
}

func (e *Env) BuildRouter() http.Handler {
	log.Info().Msg("setting up listeners")

	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", e.HandleLogin)
	mux.HandleFunc("GET /health", e.HandleHealth)

	cop := http.NewCrossOriginProtection()

	return cop.Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("could not write response body")
	}
}
