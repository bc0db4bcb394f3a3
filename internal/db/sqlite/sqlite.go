package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"
)

type SQLite struct {
	db *sql.DB
}

var _ db.DB = (*SQLite)(nil)

func NewSQLiteFromConfig() (*SQLite, error) {
	config.Lock.RLock()
	file := viper.GetString(config.KeyDBFile)
	config.Lock.RUnlock()

	if file == "" {
		return nil, errors.New("db: NewSQLiteFromConfig: db file not set")
	}

	return NewSQLite(file)
}

func NewSQLite(file string) (*SQLite, error) {
	absDBFile, err := filepath.Abs(file)
	if err != nil {
		log.Warn().Str("raw_db_file", file).Err(err).Msg("could not get db file absolute path")
	}

	log.Info().Str("raw_db_file", file).Str("abs_db_file", absDBFile).Msg("starting database initialization")

	database, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not open db: %w", err)
	}

	err = migrateDatabase(database)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not migrate database: %w", err)
	}

	// the migration driver closes the handle it was given, so reopen now that migration is complete
	database, err = sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("db: NewSQLite: could not open db: %w", err)
	}

	log.Info().Str("raw_db_file", file).Str("abs_db_file", absDBFile).Msg("finished database initialization")

	return &SQLite{db: database}, nil
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	var id string
	var password string
	var disabled int64
	var createdAt int64
	err := s.db.QueryRowContext(ctx, "SELECT id, password, disabled, created_at FROM users WHERE username = $1", username).Scan(&id, &password, &disabled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("username", username).Msg("user not found")
			return nil, nil
		}
		return nil, fmt.Errorf("db: sqlite: GetUserByUsername: %w", err)
	}

	return &user.User{
		Id:           id,
		Username:     username,
		PasswordHash: password,
		Disabled:     disabled != 0,
		CreatedAt:    createdAt,
	}, nil
}

// CreateUser inserts u, filling in its Id and CreatedAt if they are not already set.
func (s *SQLite) CreateUser(ctx context.Context, u *user.User) error {
	if u.Id == "" {
		u.Id = uuid.NewString()
	}

	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx, "INSERT INTO users (id, username, password, disabled, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.Id,
		u.Username,
		u.PasswordHash,
		u.Disabled,
		u.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("db: sqlite: CreateUser: %s: %w", u.Username, db.ErrDuplicateUser)
		}

		log.Error().Err(err).Str("username", u.Username).Msg("could not save user")
		return fmt.Errorf("db: sqlite: CreateUser: %w", err)
	}

	log.Info().Str("username", u.Username).Str("user_id", u.Id).Msg("created user")

	return nil
}

func (s *SQLite) UpdatePassword(ctx context.Context, u *user.User) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password = $1 WHERE id = $2", u.PasswordHash, u.Id)
	if err != nil {
		return fmt.Errorf("db: sqlite: UpdatePassword: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: sqlite: UpdatePassword: %w", err)
	}

	if updated == 0 {
		return fmt.Errorf("db: sqlite: UpdatePassword: %s: %w", u.Id, db.ErrUserNotFound)
	}

	return nil
}

func (s *SQLite) CountUsers(ctx context.Context) (int, error) {
	var userCount int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil {
		return 0, fmt.Errorf("db: sqlite: CountUsers: %w", err)
	}

	return userCount, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
