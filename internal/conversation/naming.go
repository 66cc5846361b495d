// ABOUTME: Naming strategy for conversations
// ABOUTME: Group names join member titles; one-on-one titles resolve lazily

package conversation

import (
	"context"
	"strings"

	"github.com/parleyhq/parley/internal/identity"
)

// groupName joins the resolved titles of the given members with ", ".
// Called at creation time for group conversations only; one-on-one
// conversations stay unnamed and are titled from the counterpart at read
// time.
func groupName(ctx context.Context, resolver identity.Resolver, memberIDs []int64) (string, error) {
	titles := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		title, err := resolver.Title(ctx, id)
		if err != nil {
			return "", err
		}
		titles = append(titles, title)
	}
	return strings.Join(titles, ", "), nil
}
