package api

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
)

const sessionUserKey = "user_id"

// Sessions wraps a cookie-backed session store. The cookie carries only the
// signed user id; the user record itself is loaded per request.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

func NewSessions(key []byte, name string, maxAge time.Duration, secure bool) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return &Sessions{store: store, name: name}
}

// UserID extracts the signed-in user id from the request cookie. The second
// return is false for anonymous requests and for cookies that fail
// authentication.
func (s *Sessions) UserID(r *http.Request) (int, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return 0, false
	}
	id, ok := sess.Values[sessionUserKey].(int)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, userID int) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values[sessionUserKey] = userID
	if err := sess.Save(r, w); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
