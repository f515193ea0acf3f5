package model

import (
	"errors"
	"strings"
	"time"
)

// Provider identifies an external fitness data service.
type Provider string

const (
	ProviderFitbit Provider = "fitbit"
	ProviderStrava Provider = "strava"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderFitbit, ProviderStrava}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderFitbit, ProviderStrava:
		return p, nil
	default:
		return "", ErrUnknownProvider
	}
}

func (p Provider) String() string { return string(p) }

// TokenRecord is the live OAuth credential pair for one (user, provider).
type TokenRecord struct {
	UserID         string    `db:"user_id" json:"-"`
	Provider       Provider  `db:"provider" json:"provider"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	Scope          string    `db:"scope" json:"scope,omitempty"`
	ProviderUserID string    `db:"provider_user_id" json:"provider_user_id,omitempty"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires at or before now+margin.
func (t *TokenRecord) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return t.ExpiresAt.Sub(now) <= margin
}

// CanRefresh reports whether the record carries a refresh token.
func (t *TokenRecord) CanRefresh() bool {
	return t.RefreshToken != ""
}

// Connection is the status of one provider integration for a user.
type Connection struct {
	Provider       Provider  `json:"provider"`
	Connected      bool      `json:"connected"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	ProviderUserID string    `json:"provider_user_id,omitempty"`
}
