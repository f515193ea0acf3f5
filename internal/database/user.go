package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fitdash/internal/model"
)

// UserStore persists dashboard accounts. Lookups return nil, nil when no
// user matches.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, name, avatarURL string) error
}

type PostgresUserStore struct {
	db *sql.DB
}

var _ UserStore = (*PostgresUserStore)(nil)

func NewUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const selectUser = `SELECT id, email, name, avatar_url, created_at, updated_at FROM users`

func (s *PostgresUserStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (s *PostgresUserStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (s *PostgresUserStore) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user := &model.User{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No user found is not an error
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// UpdateUserProfile refreshes the display fields Google returns on each login.
func (s *PostgresUserStore) UpdateUserProfile(ctx context.Context, id, name, avatarURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, avatar_url = $2, updated_at = $3 WHERE id = $4`,
		name, avatarURL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
