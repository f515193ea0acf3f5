package auth

import (
	"net/http"

	"github.com/antonlindstrom/pgstore"
	"github.com/gorilla/sessions"
)

const (
	SessionName = "fitdash_session"

	// UserIDKey holds the signed-in user's id in the session.
	UserIDKey = "user_id"
)

// NewStore returns a Postgres-backed cookie session store. secure should be
// false only for plain-HTTP local development.
func NewStore(dbURL string, secure bool, keyPairs ...[]byte) (*pgstore.PGStore, error) {
	store, err := pgstore.NewPGStore(dbURL, keyPairs...)
	if err != nil {
		return nil, err
	}

	sameSite := http.SameSiteNoneMode
	if !secure {
		sameSite = http.SameSiteLaxMode
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}

	return store, nil
}

func GetSession(store sessions.Store, r *http.Request) (*sessions.Session, error) {
	return store.Get(r, SessionName)
}

// SessionUserID returns the user id stored in s, or "" when signed out.
func SessionUserID(s *sessions.Session) string {
	id, _ := s.Values[UserIDKey].(string)
	return id
}
