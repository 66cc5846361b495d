// ABOUTME: Tests for the store-backed identity resolver
// ABOUTME: Verifies display-name preference and username fallback

package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

type mockUserSource struct {
	users map[int64]*store.User
}

func (m *mockUserSource) GetUser(ctx context.Context, id int64) (*store.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func TestTitle_PrefersDisplayName(t *testing.T) {
	r := NewStoreResolver(&mockUserSource{users: map[int64]*store.User{
		1: {ID: 1, Username: "alice", DisplayName: "Alice Andersson"},
	}})

	title, err := r.Title(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice Andersson", title)
}

func TestTitle_FallsBackToUsername(t *testing.T) {
	r := NewStoreResolver(&mockUserSource{users: map[int64]*store.User{
		2: {ID: 2, Username: "bob"},
	}})

	title, err := r.Title(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", title)
}

func TestTitle_UnknownUser(t *testing.T) {
	r := NewStoreResolver(&mockUserSource{users: map[int64]*store.User{}})

	_, err := r.Title(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
