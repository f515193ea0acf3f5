package tokens

import (
	"errors"
	"fmt"

	"fitdash/internal/model"
)

// Error kinds. Callers branch on these with errors.Is.
var (
	// ErrConfiguration means client credentials or the redirect URI are missing.
	ErrConfiguration = errors.New("provider not configured")

	// ErrTokenExchange means the authorization code could not be exchanged.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrRefresh means the refresh token was rejected or could not be used.
	ErrRefresh = errors.New("token refresh failed")

	// ErrUnauthenticated means no usable access token exists; the user has to
	// go through the authorize flow again.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrProviderRequest means an authenticated resource call failed for a
	// reason other than a rejected token.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrStorage means the token or state store failed.
	ErrStorage = errors.New("token storage failed")
)

// Error carries the kind of failure plus provider detail for logs.
type Error struct {
	Kind     error
	Provider model.Provider
	// Status is the provider HTTP status, zero when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind error, p model.Provider, err error) *Error {
	return &Error{Kind: kind, Provider: p, Err: err}
}

// ProviderMessage returns the provider's human-readable message, if any.
func ProviderMessage(err error) string {
	var te *Error
	for errors.As(err, &te) {
		if te.Message != "" {
			return te.Message
		}
		err = te.Err
	}
	return ""
}
