package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lthummus/loginguard/internal/durations"
	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/pwmigrate"
	"github.com/lthummus/loginguard/internal/user"
)

const maxLoginBodyBytes = 16 * 1024

// fakeUser has a real hash that we check against when logging in with a user that does not exist, so user existence
// can't be detected via timing
var fakeUser = sync.OnceValue(func() *user.User {
	hash, err := user.HashPassword("hello world this is my fake password")
	if err != nil {
		log.Fatal().Err(err).Msg("could not generate fake hash")
	}
	return &user.User{PasswordHash: hash}
})

type loginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	Message           string `json:"message"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

func (e *Env) lockedMessage() string {
	return fmt.Sprintf("This account is temporarily locked. Try again in %s", durations.NiceDuration(e.Logins.LockoutWindow()))
}

func (e *Env) writeLocked(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(int(e.Logins.LockoutWindow().Seconds())))
	writeJSON(w, http.StatusTooManyRequests, loginResponse{Message: e.lockedMessage()})
}

// handleLoginFailure answers a failed login. The failure was already counted by ReserveAttempt.
func (e *Env) handleLoginFailure(w http.ResponseWriter, username string) {
	remaining := e.Logins.AttemptsRemaining(username)
	if remaining <= 0 {
		writeJSON(w, http.StatusUnauthorized, loginResponse{
			Message:           fmt.Sprintf("Invalid username or password. This account has been locked for %s due to multiple failures", durations.NiceDuration(e.Logins.LockoutWindow())),
			AttemptsRemaining: &remaining,
		})
		return
	}

	writeJSON(w, http.StatusUnauthorized, loginResponse{
		Message:           fmt.Sprintf("Invalid username or password. You have %d more attempts before the account is temporarily locked", remaining),
		AttemptsRemaining: &remaining,
	})
}

func (e *Env) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("could not parse login form")
		writeJSON(w, http.StatusBadRequest, loginResponse{Message: "Could not parse login request"})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if e.Logins.IsBlocked(&user.User{Username: username}) {
		log.Warn().Str("username", username).Str("source_ip", e.Proxies.Find(r)).Msg("login attempt for locked account")
		e.writeLocked(w)
		return
	}

	u, err := e.Database.GetUserByUsername(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Msg("could not query for user")
		writeJSON(w, http.StatusInternalServerError, loginResponse{Message: "database error"})
		return
	}

	// counted before the password is checked, so a burst of concurrent guesses still stops at the limit
	if !e.Logins.ReserveAttempt(loginlimit.NewAuthenticationEvent(username)) {
		log.Warn().Str("username", username).Str("source_ip", e.Proxies.Find(r)).Msg("concurrent login attempt over the limit")
		e.writeLocked(w)
		return
	}

	if u == nil {
		log.Error().Str("username", username).Str("source_ip", e.Proxies.Find(r)).Msg("invalid login")

		_ = fakeUser().CheckPassword(password)

		e.handleLoginFailure(w, username)
		return
	}

	err = u.CheckPassword(password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidHash) || errors.Is(err, user.ErrNoPasswordSet) {
			log.Error().Err(err).Str("username", username).Msg("stored password hash is unusable")
		} else {
			log.Error().Err(err).Str("username", username).Str("source_ip", e.Proxies.Find(r)).Msg("invalid login")
		}

		e.handleLoginFailure(w, username)
		return
	}

	e.Logins.RegisterAuthenticationSuccess(loginlimit.NewAuthenticationEvent(username))

	if u.Disabled {
		log.Warn().Str("username", username).Str("source_ip", e.Proxies.Find(r)).Msg("login of disabled account")
		writeJSON(w, http.StatusForbidden, loginResponse{Message: "Account is disabled"})
		return
	}

	if u.NeedsRehash() {
		rehash := *u
		go pwmigrate.RehashUser(context.Background(), &rehash, password, e.Database)
	}

	log.Info().Str("username", username).Str("user_id", u.Id).Msg("successful login")
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: true, Message: "Login successful"})
}
