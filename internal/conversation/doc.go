// Package conversation provides the orchestration layer for parley's
// messaging use cases.
//
// # Service
//
// Service combines the conversation store, the identity resolver and the
// push layer:
//
//	svc := conversation.NewService(store, resolver, broadcaster, logger)
//
// Key operations:
//
//   - GetConversation: fetch with read-on-view (viewing marks it read)
//   - ListConversations: the requester's conversations by recent activity
//   - CreateConversation: create, or reuse the existing one-on-one pair
//   - ListMessages: cursor-paged messages, ascending for display
//   - InsertMessage: append a message authored by the requester
//   - StartTyping / StopTyping: fan a typing event out to other members
//   - MarkRead: advance the requester's read cursor
//   - UnreadCount: number of conversations with unread activity
//
// Every operation takes the requester's identity explicitly; the service
// never reads ambient request state. Membership gates all
// conversation-scoped operations, and non-membership surfaces as not-found.
//
// # Typing Fan-out
//
// Broadcaster is an in-memory pub/sub keyed by user id. Typing events are
// ephemeral: they are pushed to each recipient's subscribers and never
// persisted. Delivery is non-blocking per recipient, so one slow consumer
// drops its own copy without delaying anyone else. Push transports (SSE,
// websocket, mobile) subscribe via Subscribe; none ship in this package.
package conversation
