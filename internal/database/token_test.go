package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitdash/internal/model"
)

var tokenColumns = []string{"access_token", "refresh_token", "expires_at", "scope", "provider_user_id", "updated_at"}

func TestTokenStore_Get(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
	q := `(?s)^SELECT\s+access_token,.*FROM\s+provider_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+provider\s*=\s*\$2$`

	t.Run("Found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WithArgs("user-1", "strava").
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow("AT1", "RT1", expires, "read", "42", expires.Add(-time.Hour)))

		got, err := NewTokenStore(db).Get(ctx, "user-1", model.ProviderStrava)
		require.NoError(t, err)
		assert.Equal(t, &model.TokenRecord{
			UserID:         "user-1",
			Provider:       model.ProviderStrava,
			AccessToken:    "AT1",
			RefreshToken:   "RT1",
			ExpiresAt:      expires,
			Scope:          "read",
			ProviderUserID: "42",
			UpdatedAt:      expires.Add(-time.Hour),
		}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Absent", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WithArgs("user-1", "fitbit").WillReturnError(sql.ErrNoRows)

		got, err := NewTokenStore(db).Get(ctx, "user-1", model.ProviderFitbit)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DB Error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WillReturnError(errors.New("db down"))

		_, err := NewTokenStore(db).Get(ctx, "user-1", model.ProviderFitbit)
		assert.ErrorContains(t, err, "get token: db down")
	})
}

func TestTokenStore_Set(t *testing.T) {
	db, mock := newMock(t)
	expires := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
	updated := expires.Add(-time.Hour)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+provider_tokens\b.*ON\s+CONFLICT\s+\(user_id,\s*provider\)\s+DO\s+UPDATE`).
		WithArgs("user-1", "fitbit", "AT2", "RT2", expires, "sleep", "FB1", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTokenStore(db).Set(context.Background(), &model.TokenRecord{
		UserID:         "user-1",
		Provider:       model.ProviderFitbit,
		AccessToken:    "AT2",
		RefreshToken:   "RT2",
		ExpiresAt:      expires,
		Scope:          "sleep",
		ProviderUserID: "FB1",
		UpdatedAt:      updated,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_Delete(t *testing.T) {
	db, mock := newMock(t)
	q := `^DELETE\s+FROM\s+provider_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+provider\s*=\s*\$2$`

	mock.ExpectExec(q).WithArgs("user-1", "strava").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("user-1", "strava").WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewTokenStore(db)
	require.NoError(t, s.Delete(context.Background(), "user-1", model.ProviderStrava))
	require.NoError(t, s.Delete(context.Background(), "user-1", model.ProviderStrava), "deleting an absent record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_SaveState(t *testing.T) {
	db, mock := newMock(t)
	expires := time.Date(2025, 1, 1, 12, 10, 0, 0, time.UTC)

	mock.ExpectExec(`^DELETE\s+FROM\s+oauth_states\s+WHERE\s+expires_at\s*<=\s*\$1$`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`^INSERT\s+INTO\s+oauth_states\b`).
		WithArgs("state-1", "user-1", "strava", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTokenStore(db).SaveState(context.Background(), "state-1", "user-1", model.ProviderStrava, expires)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_ConsumeState(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	q := `^DELETE\s+FROM\s+oauth_states\s+WHERE\s+state\s*=\s*\$1\s+RETURNING\s+user_id,\s*provider,\s*expires_at$`
	cols := []string{"user_id", "provider", "expires_at"}

	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantOK    bool
		wantErr   bool
	}{
		{
			name: "Valid",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q).WithArgs("state-1").
					WillReturnRows(sqlmock.NewRows(cols).AddRow("user-1", "strava", now.Add(time.Minute)))
			},
			wantOK: true,
		},
		{
			name: "Expired",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q).WithArgs("state-1").
					WillReturnRows(sqlmock.NewRows(cols).AddRow("user-1", "strava", now))
			},
			wantOK: false,
		},
		{
			name: "Unknown",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q).WithArgs("state-1").WillReturnError(sql.ErrNoRows)
			},
			wantOK: false,
		},
		{
			name: "DB Error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q).WithArgs("state-1").WillReturnError(errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			tc.setupMock(mock)

			userID, p, ok, err := NewTokenStore(db).ConsumeState(ctx, "state-1", now)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, "user-1", userID)
				assert.Equal(t, model.ProviderStrava, p)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
