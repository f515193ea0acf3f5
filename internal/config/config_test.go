package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/fitdash?sslmode=disable")
	t.Setenv("SESSION_SECRET", "secret")
}

func TestFromViper_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.TokenRefreshMargin)
	assert.Equal(t, 10*time.Second, cfg.ProviderHTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Fitbit.ClientID)
}

func TestFromViper_Environment(t *testing.T) {
	setRequired(t)
	t.Setenv("ADDR", ":8080")
	t.Setenv("FRONTEND_URL", "https://dash.example.com")
	t.Setenv("CORS_ORIGINS", "https://dash.example.com, https://admin.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "g-id")
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "s-secret")
	t.Setenv("STRAVA_REDIRECT_URL", "https://api.example.com/integrations/strava/callback")
	t.Setenv("STRAVA_SCOPES", "read,activity:read")
	t.Setenv("FITBIT_API_URL", "http://localhost:8081")
	t.Setenv("TOKEN_REFRESH_MARGIN", "2m")
	t.Setenv("PROVIDER_HTTP_TIMEOUT", "3s")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"https://dash.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "g-id", cfg.ClientID)
	assert.Equal(t, 2*time.Minute, cfg.TokenRefreshMargin)
	assert.Equal(t, 3*time.Second, cfg.ProviderHTTPTimeout)
	assert.True(t, cfg.LogPretty)

	strava := cfg.Strava.Tokens()
	assert.Equal(t, "12345", strava.ClientID)
	assert.Equal(t, "s-secret", strava.ClientSecret)
	assert.Equal(t, "https://api.example.com/integrations/strava/callback", strava.RedirectURL)
	assert.Equal(t, []string{"read", "activity:read"}, strava.Scopes)

	assert.Equal(t, "http://localhost:8081", cfg.Fitbit.Tokens().APIBaseURL)
}

func TestFromViper_Required(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")

	_, err := FromViper(newViper())
	assert.ErrorContains(t, err, "DATABASE_URL, SESSION_SECRET")
}

func TestFromViper_InvalidMargin(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_REFRESH_MARGIN", "0s")

	_, err := FromViper(newViper())
	assert.ErrorContains(t, err, "TOKEN_REFRESH_MARGIN")
}

func TestFromViper_NoCORSOrigins(t *testing.T) {
	setRequired(t)
	v := newViper()
	v.Set("frontend.url", "")
	v.Set("cors.origins", "")

	_, err := FromViper(v)
	assert.ErrorContains(t, err, "CORS_ORIGINS")
}
