// ABOUTME: Tests for the SQLite store conversation and read-cursor operations
// ABOUTME: Verifies creation, pair dedup, membership, monotonic cursors, unread

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
}

func TestCreateConversation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)
	assert.Empty(t, conv.Name)
	assert.Equal(t, []int64{1, 2}, conv.MemberIDs)
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, []int64{1, 2}, got.MemberIDs)
	assert.Nil(t, got.LastMessageAt)
}

func TestCreateConversation_DedupesMembers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{2, 1, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, conv.MemberIDs)
}

func TestCreateConversation_TooFewMembers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateConversation(ctx, "", []int64{7, 7})
	assert.ErrorIs(t, err, ErrNoMembers)

	_, err = s.CreateConversation(ctx, "", nil)
	assert.ErrorIs(t, err, ErrNoMembers)
}

func TestCreateConversation_PairIsUnique(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)

	_, err = s.CreateConversation(ctx, "", []int64{2, 1})
	assert.ErrorIs(t, err, ErrDuplicateConversation)

	got, err := s.GetConversationByPair(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestCreateConversation_GroupsNotDeduplicated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.CreateConversation(ctx, "team", []int64{1, 2, 3})
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "team", []int64{1, 2, 3})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetConversation_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetConversation(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConversationByPair_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetConversationByPair(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "", []int64{1, 3})
	require.NoError(t, err)

	// A message in the older conversation moves it to the top
	_, err = s.InsertMessage(ctx, first.ID, 2, "bump")
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
	require.NotNil(t, convs[0].LastMessageAt)
}

func TestListConversations_OnlyMemberships(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "", []int64{3, 4})
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, convs, 1)

	convs, err = s.ListConversations(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSetRead_Monotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)

	t1 := time.Now()
	t2 := t1.Add(time.Minute)

	// Deliver the newer timestamp first; the older one must not regress it
	require.NoError(t, s.SetRead(ctx, conv.ID, 1, t2))
	require.NoError(t, s.SetRead(ctx, conv.ID, 1, t1))

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.NotNil(t, convs[0].ReadAt)
	assert.WithinDuration(t, t2, *convs[0].ReadAt, time.Microsecond)
}

func TestSetRead_UnknownConversationIsNoOp(t *testing.T) {
	s := createTestStore(t)

	err := s.SetRead(context.Background(), 999, 1, time.Now())
	assert.NoError(t, err)
}

func TestSetRead_NonMemberIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)

	err = s.SetRead(ctx, conv.ID, 42, time.Now())
	assert.NoError(t, err)

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].ReadAt)
}

func TestUnreadConversations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)

	// No messages yet: nothing unread either way
	unread, err := s.UnreadConversations(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// Message from user 1 makes the conversation unread for user 2 only
	_, err = s.InsertMessage(ctx, conv.ID, 1, "hi")
	require.NoError(t, err)

	unread, err = s.UnreadConversations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, conv.ID, unread[0].ID)

	unread, err = s.UnreadConversations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// Reading clears it
	require.NoError(t, s.SetRead(ctx, conv.ID, 2, time.Now()))
	unread, err = s.UnreadConversations(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// A newer message makes it unread again
	_, err = s.InsertMessage(ctx, conv.ID, 1, "there")
	require.NoError(t, err)
	unread, err = s.UnreadConversations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, conv.ID, unread[0].ID)
}

func TestUnreadConversations_OwnMessagesDoNotCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", []int64{1, 2})
	require.NoError(t, err)

	require.NoError(t, s.SetRead(ctx, conv.ID, 2, time.Now()))

	// User 2's own message after reading should not mark it unread for them
	_, err = s.InsertMessage(ctx, conv.ID, 2, "my own reply")
	require.NoError(t, err)

	unread, err := s.UnreadConversations(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
