// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines Conversation, Message, User structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when creating a one-on-one
// conversation whose member pair already has one
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrDuplicateUser is returned when creating a user with a taken username
var ErrDuplicateUser = errors.New("username already taken")

// Validation errors surfaced to callers as bad requests
var (
	ErrEmptyText = errors.New("message text is empty")
	ErrNoMembers = errors.New("conversation requires at least two members")
	ErrBadCursor = errors.New("invalid cursor")
)

// Conversation is a message thread between two or more members.
// Name is empty for one-on-one conversations; presentation layers derive
// a title from the counterpart at read time.
type Conversation struct {
	ID        int64
	Name      string
	MemberIDs []int64
	CreatedAt time.Time

	// Per-member decoration, populated by member-scoped queries.
	ReadAt        *time.Time // requesting member's read cursor, nil if never read
	LastMessageAt *time.Time // timestamp of the newest message, nil if empty
}

// IsMember reports whether userID belongs to the conversation.
func (c *Conversation) IsMember(userID int64) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is a single immutable message within a conversation.
// IDs come from one autoincrement sequence, so they are strictly
// increasing within a conversation and define its canonical order.
type Message struct {
	ID             int64
	ConversationID int64
	AuthorID       int64
	Text           string
	CreatedAt      time.Time
}

// User is a registered account. DisplayName is optional; title resolution
// falls back to Username.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// PageParams controls message pagination. Cursor is an opaque value from a
// previous page's NextCursor; empty means start at the newest message.
type PageParams struct {
	Cursor string
	Limit  int // 1-100, defaults to 25
}

// MessagePage holds one page of messages, newest first. Callers reverse to
// ascending order for display.
type MessagePage struct {
	Messages   []*Message
	NextCursor string // opaque cursor for the next (older) page, empty if none
	HasMore    bool
}

// Store defines the interface for conversation, message and user persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, name string, memberIDs []int64) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationByPair(ctx context.Context, a, b int64) (*Conversation, error)
	ListConversations(ctx context.Context, memberID int64) ([]*Conversation, error)

	// Read cursors
	SetRead(ctx context.Context, conversationID, memberID int64, at time.Time) error
	UnreadConversations(ctx context.Context, memberID int64) ([]*Conversation, error)

	// Messages
	InsertMessage(ctx context.Context, conversationID, authorID int64, text string) (*Message, error)
	PageMessages(ctx context.Context, conversationID int64, p PageParams) (*MessagePage, error)

	// Users
	CreateUser(ctx context.Context, username, displayName string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// Close releases any resources held by the store
	Close() error
}
