package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
)

// SessionCookieName is the cookie carrying the admin session token
const SessionCookieName = "site_session"

// Authenticator resolves the caller of admin requests from a Bearer
// token or the session cookie
type Authenticator struct {
	sessions     *SessionManager
	apiKey       string
	cookieSecure bool
}

// NewAuthenticator creates an authenticator. An empty apiKey disables
// API key access.
func NewAuthenticator(sessions *SessionManager, apiKey string, cookieSecure bool) *Authenticator {
	return &Authenticator{
		sessions:     sessions,
		apiKey:       apiKey,
		cookieSecure: cookieSecure,
	}
}

// Sessions returns the underlying session manager
func (a *Authenticator) Sessions() *SessionManager {
	return a.sessions
}

// Authenticate returns the caller of r
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	if token, ok := bearerToken(r); ok {
		if a.apiKey != "" && SecureCompare(token, a.apiKey) {
			return &Principal{UserID: "api-key", Role: models.RoleAdmin, APIKey: true}, nil
		}
		return a.fromSession(token)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrInvalidToken
	}
	return a.fromSession(cookie.Value)
}

func (a *Authenticator) fromSession(token string) (*Principal, error) {
	s, err := a.sessions.Validate(token)
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: s.UserID, Email: s.Email, Role: s.Role}, nil
}

// Middleware rejects unauthenticated requests with 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			message := "Authentication required"
			if errors.Is(err, ErrSessionExpired) {
				message = "Session expired"
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "unauthorized",
				"message": message,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// SetSessionCookie writes the session cookie
func (a *Authenticator) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie
func (a *Authenticator) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequestToken returns the session token sent with r, if any
func RequestToken(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
