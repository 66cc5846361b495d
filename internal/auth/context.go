// ABOUTME: Requester identity plumbing between the HTTP edge and handlers
// ABOUTME: Provides WithRequester/RequesterFromContext for context propagation

package auth

import (
	"context"

	"github.com/parleyhq/parley/internal/store"
)

// Requester is the authenticated user making the request. The middleware
// attaches it to the request context; handlers read it once and pass the
// identity to the core as an explicit argument.
type Requester struct {
	ID          int64
	Username    string
	DisplayName string
}

// requesterKey is the key type for storing Requester in context.Context.
type requesterKey struct{}

// WithRequester returns a new context with the Requester attached.
func WithRequester(ctx context.Context, r *Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFromContext retrieves the Requester from the context, returning
// nil if not present.
func RequesterFromContext(ctx context.Context) *Requester {
	val := ctx.Value(requesterKey{})
	if val == nil {
		return nil
	}
	r, ok := val.(*Requester)
	if !ok {
		return nil
	}
	return r
}

// requesterFromUser builds a Requester from a stored user
func requesterFromUser(u *store.User) *Requester {
	return &Requester{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
}
