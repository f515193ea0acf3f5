package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"fitdash/internal/model"
)

// Strava OAuth constants.
const (
	stravaAuthURL = "https://www.strava.com/oauth/authorize"
	//nolint:gosec // G101: OAuth endpoint URL, not a credential
	stravaTokenURL = "https://www.strava.com/oauth/token"
	stravaAPIURL   = "https://www.strava.com/api/v3"
)

var stravaScopes = []string{"read", "activity:read_all", "profile:read_all"}

// StravaAdapter talks to Strava's OAuth endpoints. Client credentials travel
// in a JSON body, scopes are comma separated and the token reply carries an
// absolute expires_at.
type StravaAdapter struct {
	cfg    ProviderConfig
	client *http.Client
}

var _ ProviderAdapter = (*StravaAdapter)(nil)

func NewStravaAdapter(cfg ProviderConfig, client *http.Client) *StravaAdapter {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &StravaAdapter{
		cfg:    cfg.withDefaults(stravaAuthURL, stravaTokenURL, stravaAPIURL, stravaScopes),
		client: client,
	}
}

func (a *StravaAdapter) Provider() model.Provider { return model.ProviderStrava }

func (a *StravaAdapter) Configured() error { return a.cfg.validate() }

func (a *StravaAdapter) UsesState() bool { return true }

func (a *StravaAdapter) APIBaseURL() string { return a.cfg.APIBaseURL }

func (a *StravaAdapter) BuildAuthURL(state string) (string, error) {
	if err := a.Configured(); err != nil {
		return "", err
	}
	c := oauth2.Config{
		ClientID:    a.cfg.ClientID,
		RedirectURL: a.cfg.RedirectURL,
		Endpoint:    oauth2.Endpoint{AuthURL: a.cfg.AuthURL, TokenURL: a.cfg.TokenURL},
	}
	return c.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(a.cfg.Scopes, ",")),
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
	), nil
}

type stravaTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type stravaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
	Athlete      *struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

func (a *StravaAdapter) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	return a.post(ctx, stravaTokenRequest{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		GrantType:    "authorization_code",
		Code:         code,
	})
}

func (a *StravaAdapter) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return a.post(ctx, stravaTokenRequest{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
}

func (a *StravaAdapter) post(ctx context.Context, body stravaTokenRequest) (*TokenResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var raw stravaTokenResponse
	if err := postToken(ctx, a.client, tokenRequest{
		url:         a.cfg.TokenURL,
		contentType: "application/json",
		body:        b,
	}, &raw); err != nil {
		return nil, err
	}
	if raw.AccessToken == "" {
		return nil, errMissingAccessToken
	}

	resp := &TokenResponse{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    raw.ExpiresAt,
		ExpiresIn:    raw.ExpiresIn,
	}
	if raw.Athlete != nil && raw.Athlete.ID != 0 {
		resp.ProviderUserID = strconv.FormatInt(raw.Athlete.ID, 10)
	}
	return resp, nil
}

// ParseExpiry prefers the absolute expires_at. expires_in is only used when a
// reply omits it.
func (a *StravaAdapter) ParseExpiry(resp *TokenResponse, now time.Time) (time.Time, error) {
	if resp.ExpiresAt > 0 {
		return time.Unix(resp.ExpiresAt, 0).UTC(), nil
	}
	if resp.ExpiresIn > 0 {
		return expiryFromSeconds(now, resp.ExpiresIn)
	}
	return time.Time{}, errors.New("response missing expires_at")
}
