package loginlimit

import (
	"time"

	"github.com/lthummus/loginguard/internal/user"
)

// AuthenticationEvent is the outcome of a single password check for a username.
type AuthenticationEvent struct {
	Username string
}

func NewAuthenticationEvent(username string) AuthenticationEvent {
	return AuthenticationEvent{Username: username}
}

type LoginService interface {
	RegisterAuthenticationFailure(event AuthenticationEvent)
	RegisterAuthenticationSuccess(event AuthenticationEvent)
	IsBlocked(u *user.User) bool

	// ReserveAttempt counts an attempt as a failure before its password is checked. A successful login clears it
	// through RegisterAuthenticationSuccess. It returns false if the attempt is over the limit.
	ReserveAttempt(event AuthenticationEvent) bool

	AttemptsRemaining(username string) int
	LockoutWindow() time.Duration
}

var _ LoginService = (*DefaultLoginService)(nil)

type DefaultLoginService struct {
	tracker *AttemptTracker
}

func NewLoginService(tracker *AttemptTracker) *DefaultLoginService {
	return &DefaultLoginService{tracker: tracker}
}

func (s *DefaultLoginService) RegisterAuthenticationFailure(event AuthenticationEvent) {
	s.tracker.RegisterFailure(event.Username)
}

func (s *DefaultLoginService) RegisterAuthenticationSuccess(event AuthenticationEvent) {
	s.tracker.RegisterSuccess(event.Username)
}

// IsBlocked reports whether u has used up its failed attempts. A nil user is never blocked.
func (s *DefaultLoginService) IsBlocked(u *user.User) bool {
	if u == nil {
		return false
	}

	return !s.tracker.HasAttemptsRemaining(u.Username)
}

func (s *DefaultLoginService) ReserveAttempt(event AuthenticationEvent) bool {
	return s.tracker.RegisterFailure(event.Username) <= s.tracker.Limit()
}

func (s *DefaultLoginService) AttemptsRemaining(username string) int {
	return s.tracker.AttemptsRemaining(username)
}

func (s *DefaultLoginService) LockoutWindow() time.Duration {
	return s.tracker.Window()
}
