package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fitdash/internal/tokens"
)

type Config struct {
	Addr        string
	AppEnv      string
	FrontendURL string
	CORSOrigins []string

	ClientID          string
	ClientSecret      string
	ClientCallbackURL string

	DatabaseURL   string
	SessionSecret string

	Fitbit ProviderConfig
	Strava ProviderConfig

	TokenRefreshMargin  time.Duration
	ProviderHTTPTimeout time.Duration

	LogLevel  string
	LogPretty bool
}

// ProviderConfig is the OAuth client registration of one fitness provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIURL       string
}

// Tokens converts c for the token manager. Empty endpoints keep the
// provider defaults.
func (c ProviderConfig) Tokens() tokens.ProviderConfig {
	return tokens.ProviderConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		AuthURL:      c.AuthURL,
		TokenURL:     c.TokenURL,
		APIBaseURL:   c.APIURL,
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("addr", ":9999")
	v.SetDefault("app.env", "dev")
	v.SetDefault("frontend.url", "http://localhost:5173")
	v.SetDefault("cors.origins", "")

	v.SetDefault("token.refresh_margin", tokens.DefaultRefreshMargin.String())
	v.SetDefault("provider.http_timeout", tokens.DefaultHTTPTimeout.String())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from v. Provider credentials are optional here;
// a provider without them fails at authorize time.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:        v.GetString("addr"),
		AppEnv:      v.GetString("app.env"),
		FrontendURL: v.GetString("frontend.url"),
		CORSOrigins: splitList(v.GetString("cors.origins")),

		ClientID:          v.GetString("google.client_id"),
		ClientSecret:      v.GetString("google.client_secret"),
		ClientCallbackURL: v.GetString("google.callback_url"),

		DatabaseURL:   v.GetString("database.url"),
		SessionSecret: v.GetString("session.secret"),

		Fitbit: providerFromViper(v, "fitbit"),
		Strava: providerFromViper(v, "strava"),

		TokenRefreshMargin:  v.GetDuration("token.refresh_margin"),
		ProviderHTTPTimeout: v.GetDuration("provider.http_timeout"),

		LogLevel:  v.GetString("log.level"),
		LogPretty: v.GetBool("log.pretty"),
	}

	if len(cfg.CORSOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("environment variables %s are required", strings.Join(missing, ", "))
	}
	if len(cfg.CORSOrigins) == 0 {
		return nil, errors.New("CORS_ORIGINS or FRONTEND_URL must be set")
	}
	if cfg.TokenRefreshMargin <= 0 {
		return nil, errors.New("TOKEN_REFRESH_MARGIN must be positive")
	}
	if cfg.ProviderHTTPTimeout <= 0 {
		return nil, errors.New("PROVIDER_HTTP_TIMEOUT must be positive")
	}

	return cfg, nil
}

func providerFromViper(v *viper.Viper, name string) ProviderConfig {
	key := func(k string) string { return name + "." + k }
	return ProviderConfig{
		ClientID:     v.GetString(key("client_id")),
		ClientSecret: v.GetString(key("client_secret")),
		RedirectURL:  v.GetString(key("redirect_url")),
		Scopes:       splitList(v.GetString(key("scopes"))),
		AuthURL:      v.GetString(key("auth_url")),
		TokenURL:     v.GetString(key("token_url")),
		APIURL:       v.GetString(key("api_url")),
	}
}

// splitList splits a comma or space separated value.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
