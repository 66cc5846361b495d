// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Verifies bearer extraction, rejection paths, requester propagation

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

type mockUserStore struct {
	users map[int64]*store.User
}

func (m *mockUserStore) GetUser(ctx context.Context, id int64) (*store.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newTestMiddleware(t *testing.T) (func(http.Handler) http.Handler, *JWTVerifier) {
	t.Helper()
	verifier := NewJWTVerifier([]byte(testSecret))
	users := &mockUserStore{users: map[int64]*store.User{
		1: {ID: 1, Username: "alice", DisplayName: "Alice Andersson"},
	}}
	return Middleware(users, verifier), verifier
}

func echoRequester(t *testing.T, got **Requester) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = RequesterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	mw, verifier := newTestMiddleware(t)

	token, err := verifier.Generate(1, time.Hour)
	require.NoError(t, err)

	var got *Requester
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(echoRequester(t, &got)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice Andersson", got.DisplayName)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_InvalidToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_UnknownUser(t *testing.T) {
	mw, verifier := newTestMiddleware(t)

	token, err := verifier.Generate(99, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequesterFromContext_Empty(t *testing.T) {
	assert.Nil(t, RequesterFromContext(context.Background()))
}
