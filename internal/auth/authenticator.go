package auth

import (
	"net/http"

	"github.com/markbates/goth"
)

// Authenticator completes and ends a dashboard sign-in.
type Authenticator interface {
	CompleteUserAuth(w http.ResponseWriter, r *http.Request) (goth.User, error)
	Logout(w http.ResponseWriter, r *http.Request) error
}
