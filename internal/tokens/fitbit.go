package tokens

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"fitdash/internal/model"
)

// Fitbit OAuth constants.
const (
	fitbitAuthURL = "https://www.fitbit.com/oauth2/authorize"
	//nolint:gosec // G101: OAuth endpoint URL, not a credential
	fitbitTokenURL = "https://api.fitbit.com/oauth2/token"
	fitbitAPIURL   = "https://api.fitbit.com"
)

var fitbitScopes = []string{"activity", "heartrate", "sleep", "profile"}

// FitbitAdapter talks to Fitbit's OAuth 2.0 endpoints. Token requests are
// form encoded with HTTP Basic client credentials; expiry comes from
// expires_in. Fitbit rotates refresh tokens on every refresh.
type FitbitAdapter struct {
	cfg    ProviderConfig
	client *http.Client
}

var _ ProviderAdapter = (*FitbitAdapter)(nil)

func NewFitbitAdapter(cfg ProviderConfig, client *http.Client) *FitbitAdapter {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &FitbitAdapter{
		cfg:    cfg.withDefaults(fitbitAuthURL, fitbitTokenURL, fitbitAPIURL, fitbitScopes),
		client: client,
	}
}

func (a *FitbitAdapter) Provider() model.Provider { return model.ProviderFitbit }

func (a *FitbitAdapter) Configured() error { return a.cfg.validate() }

func (a *FitbitAdapter) UsesState() bool { return false }

func (a *FitbitAdapter) APIBaseURL() string { return a.cfg.APIBaseURL }

func (a *FitbitAdapter) BuildAuthURL(state string) (string, error) {
	if err := a.Configured(); err != nil {
		return "", err
	}
	c := oauth2.Config{
		ClientID:    a.cfg.ClientID,
		RedirectURL: a.cfg.RedirectURL,
		Scopes:      a.cfg.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: a.cfg.AuthURL, TokenURL: a.cfg.TokenURL},
	}
	return c.AuthCodeURL(state), nil
}

type fitbitTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       string `json:"user_id"`
}

func (a *FitbitAdapter) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {a.cfg.RedirectURL},
		"client_id":    {a.cfg.ClientID},
	}
	return a.post(ctx, form)
}

func (a *FitbitAdapter) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return a.post(ctx, form)
}

func (a *FitbitAdapter) post(ctx context.Context, form url.Values) (*TokenResponse, error) {
	var raw fitbitTokenResponse
	err := postToken(ctx, a.client, tokenRequest{
		url:         a.cfg.TokenURL,
		contentType: "application/x-www-form-urlencoded",
		body:        []byte(form.Encode()),
		basic:       &[2]string{a.cfg.ClientID, a.cfg.ClientSecret},
	}, &raw)
	if err != nil {
		return nil, err
	}
	if raw.AccessToken == "" {
		return nil, errMissingAccessToken
	}
	return &TokenResponse{
		AccessToken:    raw.AccessToken,
		RefreshToken:   raw.RefreshToken,
		Scope:          raw.Scope,
		ExpiresIn:      raw.ExpiresIn,
		ProviderUserID: raw.UserID,
	}, nil
}

func (a *FitbitAdapter) ParseExpiry(resp *TokenResponse, now time.Time) (time.Time, error) {
	return expiryFromSeconds(now, resp.ExpiresIn)
}
