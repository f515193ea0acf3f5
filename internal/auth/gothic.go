package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GothicAuthenticator is the real implementation of the Authenticator interface.
type GothicAuthenticator struct{}

func NewGothicAuthenticator() *GothicAuthenticator {
	return &GothicAuthenticator{}
}

func (a *GothicAuthenticator) CompleteUserAuth(w http.ResponseWriter, r *http.Request) (goth.User, error) {
	return gothic.CompleteUserAuth(w, r)
}

func (a *GothicAuthenticator) Logout(w http.ResponseWriter, r *http.Request) error {
	return gothic.Logout(w, r)
}

// UseGoogle registers the Google login provider and points gothic at store
// for its short-lived handshake session.
func UseGoogle(store sessions.Store, clientID, clientSecret, callbackURL string) goth.Provider {
	gothic.Store = store

	gp := google.New(clientID, clientSecret, callbackURL, googleScopes...)
	gp.SetPrompt("select_account")
	goth.UseProviders(gp)
	return gp
}
