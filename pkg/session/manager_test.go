package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemStore(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	data := Data{CSRFToken: "csrf", CodeVerifier: "verifier", PendingDeviceID: "D123"}
	require.NoError(t, store.Save(ctx, "sess-1", data))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	// Sessions are isolated per key
	_, err = store.Load(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_IssuesSessionCookie(t *testing.T) {
	manager := NewManager(NewInMemStore(), WithSecureCookie(false))

	var key string
	handler := manager.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = manager.Key(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.NotEmpty(t, key)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, key, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestManager_ReusesExistingCookie(t *testing.T) {
	manager := NewManager(NewInMemStore())

	var key string
	handler := manager.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = manager.Key(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "existing-key"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "existing-key", key)
	assert.Empty(t, rec.Result().Cookies(), "no new cookie for an existing session")
}

func TestManager_LoadSave(t *testing.T) {
	manager := NewManager(NewInMemStore())

	handler := manager.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fresh session loads as zero data, not an error
		data, err := manager.Load(r)
		require.NoError(t, err)
		assert.Equal(t, Data{}, data)

		data.IDToken = "id-token"
		require.NoError(t, manager.Save(r, data))

		reloaded, err := manager.Load(r)
		require.NoError(t, err)
		assert.Equal(t, "id-token", reloaded.IDToken)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
