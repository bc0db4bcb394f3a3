package db

import (
	"context"
	"errors"

	"github.com/lthummus/loginguard/internal/user"
)

var (
	ErrDuplicateUser = errors.New("db: user already exists")
	ErrUserNotFound  = errors.New("db: user not found")
)

type DB interface {
	// GetUserByUsername returns nil, nil if there is no such user
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	CreateUser(ctx context.Context, user *user.User) error
	// UpdatePassword stores user.PasswordHash for the user with user.Id
	UpdatePassword(ctx context.Context, user *user.User) error
	CountUsers(ctx context.Context) (int, error)

	Close() error
}
