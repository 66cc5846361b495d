// ABOUTME: In-memory fan-out broadcaster for typing-presence events
// ABOUTME: Delivers ephemeral notifications to per-user subscribers, never persisted

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 16
)

// Event kinds pushed to conversation members
const (
	EventTyping        = "typing"
	EventTypingStopped = "typing-stopped"
)

// TypingEvent is the transient payload fanned out when a member starts or
// stops typing. It is never persisted.
type TypingEvent struct {
	ConversationID int64  `json:"conversation"`
	UserID         int64  `json:"user"`
	Name           string `json:"name"`
	Started        bool   `json:"started"`
}

// Notification pairs an event kind with its payload for delivery.
type Notification struct {
	Kind   string       `json:"kind"`
	Typing *TypingEvent `json:"typing,omitempty"`
}

// Pusher defines what the service needs from the push layer. Delivery is
// best-effort and fire-and-forget.
type Pusher interface {
	PushToUsers(kind string, event *TypingEvent, userIDs []int64)
}

// Broadcaster provides in-memory pub/sub for push notifications.
// Subscribers register for a user id and receive events addressed to that
// user. A transport (SSE, websocket, mobile push) would sit on top of
// Subscribe; none is included here.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan *Notification // userID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[int64]map[string]chan *Notification),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events addressed to the given user.
// Returns a channel that receives notifications and a subscription ID for
// later unsubscription. The subscription is automatically cleaned up when
// ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, userID int64) (<-chan *Notification, string) {
	subID := uuid.New().String()
	ch := make(chan *Notification, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[string]chan *Notification)
	}
	b.subscribers[userID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "user_id", userID, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(userID, subID)
	}()

	return ch, subID
}

// PushToUsers delivers an event to every subscriber of each recipient.
// Non-blocking: a slow recipient drops the event without affecting the
// others or the caller.
func (b *Broadcaster) PushToUsers(kind string, event *TypingEvent, userIDs []int64) {
	n := &Notification{Kind: kind, Typing: event}

	b.mu.RLock()
	// Copy channels under read lock to avoid holding it during sends
	var targets []chan *Notification
	for _, userID := range userIDs {
		for _, ch := range b.subscribers[userID] {
			targets = append(targets, ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- n:
			// Sent
		default:
			// Subscriber channel full, drop the event for this subscriber
			b.logger.Debug("dropped event for slow subscriber",
				"kind", kind,
				"conversation_id", event.ConversationID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(userID int64, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[userID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty user entries
	if len(subs) == 0 {
		delete(b.subscribers, userID)
	}

	b.logger.Debug("subscriber removed", "user_id", userID, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, userID)
	}

	b.logger.Debug("broadcaster closed")
}
