package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

const DefaultCookieName = "device_cloud_session"

type contextKey string

const sessionKeyCtx contextKey = "session_key"

// Manager ties browser requests to server-side session data. The browser
// only carries an opaque random key in an HttpOnly cookie; all flow state
// lives behind the Store.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithCookieName overrides the session cookie name
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		m.cookieName = name
	}
}

// WithSecureCookie controls the Secure attribute on the session cookie
func WithSecureCookie(secure bool) ManagerOption {
	return func(m *Manager) {
		m.secure = secure
	}
}

// NewManager creates a new session manager backed by the given store
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		cookieName: DefaultCookieName,
		secure:     true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler is a middleware that ensures every request carries a session key,
// issuing a fresh cookie when none is present.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			key = cookie.Value
		}

		if key == "" {
			generated, err := generateSessionKey()
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			key = generated
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    key,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKeyCtx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Key returns the session key for the request, or "" when the request did
// not pass through Handler.
func (m *Manager) Key(r *http.Request) string {
	key, _ := r.Context().Value(sessionKeyCtx).(string)
	return key
}

// Load returns the session data for the request. A missing session yields
// zero Data rather than an error: a fresh browser simply has no state yet.
func (m *Manager) Load(r *http.Request) (Data, error) {
	key := m.Key(r)
	if key == "" {
		return Data{}, fmt.Errorf("no session key on request")
	}

	data, err := m.store.Load(r.Context(), key)
	if err == ErrNotFound {
		return Data{}, nil
	}
	return data, err
}

// Save stores the session data for the request
func (m *Manager) Save(r *http.Request, data Data) error {
	key := m.Key(r)
	if key == "" {
		return fmt.Errorf("no session key on request")
	}
	return m.store.Save(r.Context(), key, data)
}

// Store returns the underlying session store
func (m *Manager) Store() Store {
	return m.store
}

func generateSessionKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
