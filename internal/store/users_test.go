// ABOUTME: Tests for user persistence
// ABOUTME: Verifies creation, lookup, username uniqueness

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "Alice Andersson")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice Andersson", got.DisplayName)
}

func TestCreateUser_EmptyDisplayName(t *testing.T) {
	s := createTestStore(t)

	user, err := s.CreateUser(context.Background(), "bob", "")
	require.NoError(t, err)
	assert.Empty(t, user.DisplayName)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "Another Alice")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestCreateUser_RequiresUsername(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CreateUser(context.Background(), "   ", "No Name")
	assert.Error(t, err)
}

func TestGetUser_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUsers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "bob", "")
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}
