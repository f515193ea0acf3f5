package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

// TokenStore keeps provider token records and pending authorize states in
// Postgres.
type TokenStore struct {
	db *sql.DB
}

var (
	_ tokens.Store      = (*TokenStore)(nil)
	_ tokens.StateStore = (*TokenStore)(nil)
)

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Get(ctx context.Context, userID string, p model.Provider) (*model.TokenRecord, error) {
	rec := &model.TokenRecord{UserID: userID, Provider: p}
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, provider_user_id, updated_at
		FROM provider_tokens WHERE user_id = $1 AND provider = $2`,
		userID, string(p)).
		Scan(&rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt, &rec.Scope, &rec.ProviderUserID, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return rec, nil
}

// Set writes the whole record in a single upsert, so readers see either the
// previous record or the new one.
func (s *TokenStore) Set(ctx context.Context, rec *model.TokenRecord) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_tokens (user_id, provider, access_token, refresh_token, expires_at, scope, provider_user_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			provider_user_id = EXCLUDED.provider_user_id,
			updated_at = EXCLUDED.updated_at`,
		rec.UserID, string(rec.Provider), rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.UTC(),
		rec.Scope, rec.ProviderUserID, updatedAt)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *TokenStore) Delete(ctx context.Context, userID string, p model.Provider) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_tokens WHERE user_id = $1 AND provider = $2`, userID, string(p))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// SaveState records an issued state and drops states that have expired.
func (s *TokenStore) SaveState(ctx context.Context, state, userID string, p model.Provider, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= $1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("purge states: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, user_id, provider, expires_at) VALUES ($1, $2, $3, $4)`,
		state, userID, string(p), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ConsumeState deletes state and reports who it was issued to. The delete
// makes a state usable once even across instances.
func (s *TokenStore) ConsumeState(ctx context.Context, state string, now time.Time) (string, model.Provider, bool, error) {
	var (
		userID    string
		provider  string
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE state = $1 RETURNING user_id, provider, expires_at`, state).
		Scan(&userID, &provider, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("consume state: %w", err)
	}
	if !now.Before(expiresAt) {
		return "", "", false, nil
	}
	return userID, model.Provider(provider), true, nil
}
