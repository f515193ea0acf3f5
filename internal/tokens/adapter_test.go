package tokens

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderMessage(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "oauth error with description",
			body:   `{"error":"invalid_grant","error_description":"Refresh token expired"}`,
			status: http.StatusBadRequest,
			want:   "invalid_grant: Refresh token expired",
		},
		{
			name:   "oauth error only",
			body:   `{"error":"invalid_client"}`,
			status: http.StatusUnauthorized,
			want:   "invalid_client",
		},
		{
			name:   "fitbit errors array",
			body:   `{"errors":[{"errorType":"expired_token","message":"Access token expired: abc"}],"success":false}`,
			status: http.StatusUnauthorized,
			want:   "Access token expired: abc",
		},
		{
			name:   "strava fault",
			body:   `{"message":"Bad Request","errors":[{"resource":"RefreshToken","field":"refresh_token","code":"invalid"}]}`,
			status: http.StatusBadRequest,
			want:   "Bad Request: RefreshToken refresh_token invalid",
		},
		{
			name:   "strava message only",
			body:   `{"message":"Rate Limit Exceeded","errors":[]}`,
			status: http.StatusTooManyRequests,
			want:   "Rate Limit Exceeded",
		},
		{
			name:   "not json",
			body:   `<html>bad gateway</html>`,
			status: http.StatusBadGateway,
			want:   "Bad Gateway",
		},
		{
			name:   "empty object",
			body:   `{}`,
			status: http.StatusInternalServerError,
			want:   "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, providerMessage([]byte(tt.body), tt.status))
		})
	}
}

func TestProviderConfig_Defaults(t *testing.T) {
	fitbit := NewFitbitAdapter(ProviderConfig{ClientID: "id", RedirectURL: "http://cb"}, nil)
	assert.Equal(t, "https://api.fitbit.com", fitbit.APIBaseURL())
	assert.NoError(t, fitbit.Configured())

	strava := NewStravaAdapter(ProviderConfig{}, nil)
	assert.Equal(t, "https://www.strava.com/api/v3", strava.APIBaseURL())
	assert.ErrorContains(t, strava.Configured(), "client id, redirect uri")

	_, err := strava.BuildAuthURL("state")
	assert.Error(t, err)
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	fitbit := NewFitbitAdapter(ProviderConfig{}, nil)
	strava := NewStravaAdapter(ProviderConfig{}, nil)

	t.Run("fitbit expires_in", func(t *testing.T) {
		got, err := fitbit.ParseExpiry(&TokenResponse{ExpiresIn: 28800}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(8*time.Hour), got)
	})

	t.Run("fitbit missing expiry", func(t *testing.T) {
		_, err := fitbit.ParseExpiry(&TokenResponse{}, now)
		assert.Error(t, err)
	})

	t.Run("strava prefers expires_at", func(t *testing.T) {
		at := now.Add(6 * time.Hour)
		got, err := strava.ParseExpiry(&TokenResponse{ExpiresAt: at.Unix(), ExpiresIn: 10}, now)
		require.NoError(t, err)
		assert.Equal(t, at, got)
	})

	t.Run("strava falls back to expires_in", func(t *testing.T) {
		got, err := strava.ParseExpiry(&TokenResponse{ExpiresIn: 600}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(10*time.Minute), got)
	})

	t.Run("strava missing expiry", func(t *testing.T) {
		_, err := strava.ParseExpiry(&TokenResponse{}, now)
		assert.Error(t, err)
	})
}

func TestError(t *testing.T) {
	err := &Error{
		Kind:     ErrRefresh,
		Provider: "strava",
		Status:   http.StatusBadRequest,
		Message:  "invalid_grant",
	}
	assert.Equal(t, "strava: token refresh failed (status 400): invalid_grant", err.Error())
	assert.ErrorIs(t, err, ErrRefresh)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	wrapped := unauthenticated("strava", err)
	assert.ErrorIs(t, wrapped, ErrUnauthenticated)
	assert.ErrorIs(t, wrapped, ErrRefresh)
	assert.Equal(t, "invalid_grant", ProviderMessage(wrapped))

	storage := newError(ErrStorage, "strava", assert.AnError)
	assert.Same(t, storage, unauthenticated("strava", storage))
}
