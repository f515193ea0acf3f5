package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fitdash/internal/model"
)

// ProviderConfig holds the OAuth client registration for one provider.
// Empty URL fields fall back to the provider's public endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

func (c ProviderConfig) validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.RedirectURL == "" {
		missing = append(missing, "redirect uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c ProviderConfig) withDefaults(authURL, tokenURL, apiURL string, scopes []string) ProviderConfig {
	if c.AuthURL == "" {
		c.AuthURL = authURL
	}
	if c.TokenURL == "" {
		c.TokenURL = tokenURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = apiURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = scopes
	}
	return c
}

// TokenResponse is a decoded token endpoint reply, normalized across providers.
// ExpiresIn is seconds from now; ExpiresAt is epoch seconds. Providers fill
// whichever their API documents.
type TokenResponse struct {
	AccessToken    string
	RefreshToken   string
	Scope          string
	ExpiresIn      int64
	ExpiresAt      int64
	ProviderUserID string
}

// ProviderAdapter hides how a provider builds its consent URL, encodes token
// requests and reports expiry. The Manager is written once against it.
type ProviderAdapter interface {
	Provider() model.Provider
	// Configured returns an error if client credentials are missing.
	Configured() error
	// UsesState reports whether the authorize flow carries an anti-forgery state.
	UsesState() bool
	BuildAuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	ParseExpiry(resp *TokenResponse, now time.Time) (time.Time, error)
	APIBaseURL() string
}

// endpointError is a non-2xx reply from a provider endpoint.
type endpointError struct {
	Status  int
	Message string
}

func (e *endpointError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

const maxTokenResponseBytes = 1 << 20

type tokenRequest struct {
	url         string
	contentType string
	body        []byte
	// basic, when set, is sent as HTTP Basic client credentials.
	basic *[2]string
}

func postToken(ctx context.Context, client *http.Client, tr tokenRequest, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tr.url, bytes.NewReader(tr.body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", tr.contentType)
	req.Header.Set("Accept", "application/json")
	if tr.basic != nil {
		req.SetBasicAuth(tr.basic[0], tr.basic[1])
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &endpointError{Status: resp.StatusCode, Message: providerMessage(body, resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	return nil
}

// providerMessage extracts a readable message from the OAuth, Fitbit and
// Strava error body shapes.
func providerMessage(body []byte, status int) string {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
		Errors      []struct {
			ErrorType string `json:"errorType"`
			Message   string `json:"message"`
			Resource  string `json:"resource"`
			Field     string `json:"field"`
			Code      string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return http.StatusText(status)
	}

	switch {
	case e.Error != "" && e.Description != "":
		return e.Error + ": " + e.Description
	case e.Error != "":
		return e.Error
	}

	var details []string
	for _, d := range e.Errors {
		switch {
		case d.Message != "":
			details = append(details, d.Message)
		case d.Resource != "" || d.Field != "":
			details = append(details, strings.Trim(fmt.Sprintf("%s %s %s", d.Resource, d.Field, d.Code), " "))
		}
	}

	msg := e.Message
	if len(details) > 0 {
		if msg != "" {
			msg += ": "
		}
		msg += strings.Join(details, "; ")
	}
	if msg == "" {
		return http.StatusText(status)
	}
	return msg
}

var errMissingAccessToken = errors.New("response missing access_token")

// expiryFromSeconds turns an expires_in field into an absolute time.
func expiryFromSeconds(now time.Time, seconds int64) (time.Time, error) {
	if seconds <= 0 {
		return time.Time{}, errors.New("response missing expires_in")
	}
	return now.Add(time.Duration(seconds) * time.Second), nil
}
