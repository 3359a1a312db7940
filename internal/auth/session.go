package auth

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	// SessionCookieName carries the signed user id.
	SessionCookieName = "user_id"
	// SessionMaxAge matches the seven day browser session.
	SessionMaxAge = 7 * 24 * time.Hour

	minSecretLength = 32
)

// Sessions signs and verifies the session cookie.
type Sessions struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewSessions builds a cookie codec from secret. An empty secret generates a
// random per-process key, which invalidates sessions on restart.
func NewSessions(secret string, secureCookie bool) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, minSecretLength)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if len(key) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	codec := securecookie.New(key, nil)
	codec.MaxAge(int(SessionMaxAge.Seconds()))
	return &Sessions{codec: codec, secure: secureCookie}, nil
}

// Issue sets the session cookie for userID.
func (s *Sessions) Issue(w http.ResponseWriter, userID int64) error {
	value, err := s.codec.Encode(SessionCookieName, userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID returns the user id carried by r, or false when the request has no valid session.
func (s *Sessions) UserID(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return 0, false
	}
	var id int64
	if err := s.codec.Decode(SessionCookieName, cookie.Value, &id); err != nil {
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
