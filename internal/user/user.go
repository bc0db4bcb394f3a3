package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoPasswordSet     = errors.New("user: no password set")
	ErrIncorrectPassword = errors.New("user: wrong password")
	ErrInvalidHash       = errors.New("user: invalid password hash")
	ErrUnusablePassword  = errors.New("user: password contains disallowed characters")
)

var bcryptCost = 12

type User struct {
	Id           string
	Username     string
	PasswordHash string
	Disabled     bool
	CreatedAt    int64
}

func (u *User) CheckPassword(candidate string) error {
	if len(u.PasswordHash) == 0 {
		return ErrNoPasswordSet
	}

	cleaned, err := cleanPassword(candidate)
	if err != nil {
		// nothing precis rejects could have been hashed in the first place
		log.Debug().Err(err).Str("username", u.Username).Msg("candidate password rejected by precis")
		return ErrIncorrectPassword
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cleaned))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrIncorrectPassword
	}

	if err != nil {
		return ErrInvalidHash
	}

	return nil
}

func HashPassword(password string) (string, error) {
	cleaned, err := cleanPassword(password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnusablePassword, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cleaned), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("user: HashPassword: could not hash password: %w", err)
	}

	return string(hash), nil
}

func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("could not hash password")
		return err
	}

	u.PasswordHash = hash
	return nil
}

// NeedsRehash reports whether the stored hash was made with a different bcrypt cost than new hashes get.
func (u *User) NeedsRehash() bool {
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil {
		return false
	}

	return cost != bcryptCost
}

func (u *User) Created() time.Time {
	return time.Unix(u.CreatedAt, 0)
}
