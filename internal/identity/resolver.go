// ABOUTME: Identity resolution for display titles
// ABOUTME: Resolves user ids to their display name, falling back to username

package identity

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/store"
)

// Resolver resolves a user id to a display title.
type Resolver interface {
	Title(ctx context.Context, userID int64) (string, error)
}

// UserSource defines what the resolver needs from storage
type UserSource interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// StoreResolver resolves titles from the user store.
type StoreResolver struct {
	users UserSource
}

// NewStoreResolver creates a resolver backed by the given user source
func NewStoreResolver(users UserSource) *StoreResolver {
	return &StoreResolver{users: users}
}

// Title returns the user's display name, or their username when no display
// name is set.
func (r *StoreResolver) Title(ctx context.Context, userID int64) (string, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolving user %d: %w", userID, err)
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Username, nil
}
