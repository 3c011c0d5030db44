package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
)

type memorySessionStore struct {
	records map[string]session.Identity
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{records: map[string]session.Identity{}}
}

func (m *memorySessionStore) Load(_ context.Context, id string) (session.Identity, error) {
	identity, ok := m.records[id]
	if !ok {
		return session.Identity{}, session.ErrSessionNotFound
	}
	return identity, nil
}

func (m *memorySessionStore) Save(_ context.Context, id string, identity session.Identity) error {
	if identity.IsEmpty() {
		delete(m.records, id)
		return nil
	}
	m.records[id] = identity
	return nil
}

func (m *memorySessionStore) Destroy(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

func (m *memorySessionStore) TTL() time.Duration {
	return time.Hour
}

var testSessionConfig = config.SessionConfig{CookieName: "tp.sid", TTL: time.Hour}

func sessionCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == testSessionConfig.CookieName {
			return c
		}
	}
	return nil
}

func TestSessionAnonymousReadCreatesNothing(t *testing.T) {
	store := newMemorySessionStore()
	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, IdentityFromContext(r.Context()).IsEmpty())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Nil(t, sessionCookie(t, resp))
	assert.Empty(t, store.records)
}

func TestSessionCommitPersistsAndSetsCookie(t *testing.T) {
	store := newMemorySessionStore()
	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, CommitIdentity(r.Context(), session.Identity{}.WithCart(7)))
		w.WriteHeader(http.StatusCreated)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Contains(t, store.records, cookie.Value)
	assert.Equal(t, int64(7), *store.records[cookie.Value].CartID)
}

func TestSessionLoadsExistingIdentity(t *testing.T) {
	store := newMemorySessionStore()
	store.records["known"] = session.Identity{}.WithUser(3)

	var seen session.Identity
	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		assert.Equal(t, "known", CurrentSessionID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: "known"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.NotNil(t, seen.UserID)
	assert.Equal(t, int64(3), *seen.UserID)
	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.Equal(t, "known", cookie.Value)
}

func TestSessionRotateIssuesNewID(t *testing.T) {
	store := newMemorySessionStore()
	store.records["old"] = session.Identity{}.WithCart(2)

	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context()).WithUser(9)
		require.NoError(t, RotateIdentity(r.Context(), identity))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: "old"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.NotContains(t, store.records, "old")
	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.NotEqual(t, "old", cookie.Value)
	require.Contains(t, store.records, cookie.Value)
	assert.Equal(t, int64(9), *store.records[cookie.Value].UserID)
}

func TestSessionUnknownCookieIsNotAdopted(t *testing.T) {
	store := newMemorySessionStore()
	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "attacker-chosen", PresentedSessionID(r.Context()))
		require.NoError(t, CommitIdentity(r.Context(), session.Identity{}.WithCart(1)))
	}))

	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: "attacker-chosen"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.NotContains(t, store.records, "attacker-chosen")
	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.NotEqual(t, "attacker-chosen", cookie.Value)
}

func TestSessionEmptyIdentityClearsCookie(t *testing.T) {
	store := newMemorySessionStore()
	store.records["live"] = session.Identity{}.WithUser(4)

	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, RotateIdentity(r.Context(), session.Identity{}))
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: "live"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Empty(t, store.records)
	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestSessionIDMintsCookieWithoutRecord(t *testing.T) {
	store := newMemorySessionStore()
	var minted string
	handler := Session(store, testSessionConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := SessionID(r.Context())
		require.NoError(t, err)
		minted = id
		w.WriteHeader(http.StatusFound)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/oauth/google", nil))

	cookie := sessionCookie(t, resp)
	require.NotNil(t, cookie)
	assert.Equal(t, minted, cookie.Value)
	assert.Empty(t, store.records)
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, anon.Code)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(WithIdentity(req.Context(), session.Identity{}.WithUser(1)))
	authed := httptest.NewRecorder()
	handler.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}
