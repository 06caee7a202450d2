/*
session.go - Cookie-based session handling

PURPOSE:
  Minimal session auth: a login endpoint verifies credentials with
  bcrypt and sets the ph_session cookie ("orgId|userId"); middleware
  resolves the cookie into a Session carried on the request context.
  Every data endpoint is scoped to the session's organization.

SECURITY NOTE:
  The cookie is HttpOnly but unsigned, matching the system this
  replaces. Production deployments should sit behind TLS and swap in a
  signed or server-side session before exposure.
*/
package api

import (
	"context"
	"net/http"
	"strings"
)

const sessionCookie = "ph_session"

// Session identifies the authenticated user and their organization.
type Session struct {
	OrgID  string
	UserID string
}

type sessionKeyType struct{}

var sessionKey sessionKeyType

// SessionFrom returns the session attached to the context, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func setSessionCookie(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.OrgID + "|" + s.UserID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func sessionFromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	parts := strings.Split(c.Value, "|")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Session{}, false
	}
	return Session{OrgID: parts[0], UserID: parts[1]}, true
}

// RequireSession rejects unauthenticated requests with 401 and attaches
// the session to the context otherwise.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autorizado", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
	})
}
