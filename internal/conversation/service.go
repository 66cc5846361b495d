// ABOUTME: Service is the central orchestration layer for conversations
// ABOUTME: Combines the store, identity resolver and pusher into the messaging use cases

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/identity"
	"github.com/parleyhq/parley/internal/store"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, name string, memberIDs []int64) (*store.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*store.Conversation, error)
	GetConversationByPair(ctx context.Context, a, b int64) (*store.Conversation, error)
	ListConversations(ctx context.Context, memberID int64) ([]*store.Conversation, error)
	SetRead(ctx context.Context, conversationID, memberID int64, at time.Time) error
	UnreadConversations(ctx context.Context, memberID int64) ([]*store.Conversation, error)
	InsertMessage(ctx context.Context, conversationID, authorID int64, text string) (*store.Message, error)
	PageMessages(ctx context.Context, conversationID int64, p store.PageParams) (*store.MessagePage, error)
}

// Service orchestrates conversation use cases. Every operation takes the
// requester's identity as an explicit argument; nothing here reads ambient
// request state.
type Service struct {
	store    ConversationStore
	resolver identity.Resolver
	pusher   Pusher
	logger   *slog.Logger
}

// NewService creates a new conversation service
func NewService(st ConversationStore, resolver identity.Resolver, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		resolver: resolver,
		pusher:   pusher,
		logger:   logger.With("component", "conversation"),
	}
}

// MessageList is one page of messages in ascending (display) order with
// pagination metadata.
type MessageList struct {
	Messages   []*store.Message
	NextCursor string
	HasMore    bool
}

// GetConversation returns the conversation and, as a side effect, advances
// the requester's read cursor to now: viewing a conversation marks it read.
// Returns ErrNotFound if the conversation does not exist or the requester
// is not a member.
func (s *Service) GetConversation(ctx context.Context, id, requesterID int64) (*store.Conversation, error) {
	if err := s.store.SetRead(ctx, id, requesterID, time.Now()); err != nil {
		return nil, fmt.Errorf("marking conversation read: %w", err)
	}

	conv, err := s.fetchForMember(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, conv, requesterID)
	return conv, nil
}

// ListConversations returns the requester's conversations ordered by most
// recent activity descending.
func (s *Service) ListConversations(ctx context.Context, requesterID int64) ([]*store.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	for _, conv := range convs {
		s.decorate(ctx, conv, requesterID)
	}
	return convs, nil
}

// CreateConversation creates a conversation between the requester and the
// given members, or returns the existing one for a one-on-one pair.
// Idempotent for pairs regardless of member order; group conversations are
// always created fresh with a name joined from the members' titles.
func (s *Service) CreateConversation(ctx context.Context, requesterID int64, memberIDs []int64) (*store.Conversation, error) {
	if len(memberIDs) == 0 {
		return nil, store.ErrNoMembers
	}

	members := append([]int64{requesterID}, memberIDs...)

	var name string
	if countDistinct(members) > 2 {
		// Group conversations get a stored name joined from the invited
		// members' titles; the requester's own title is left out.
		var err error
		name, err = groupName(ctx, s.resolver, distinctExcluding(memberIDs, requesterID))
		if err != nil {
			return nil, fmt.Errorf("naming conversation: %w", err)
		}
	}

	conv, err := s.ensureConversation(ctx, name, members)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, conv, requesterID)
	return conv, nil
}

// ensureConversation creates the conversation, reusing the existing one for
// a one-on-one pair. A creation race on the pair key is resolved by
// re-looking-up the winner.
func (s *Service) ensureConversation(ctx context.Context, name string, memberIDs []int64) (*store.Conversation, error) {
	if countDistinct(memberIDs) == 2 {
		pair := distinct(memberIDs)
		conv, err := s.store.GetConversationByPair(ctx, pair[0], pair[1])
		if err == nil {
			s.logger.Debug("reusing existing pair conversation", "conversation_id", conv.ID)
			return conv, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("looking up pair conversation: %w", err)
		}

		conv, err = s.store.CreateConversation(ctx, name, memberIDs)
		if err == nil {
			s.logger.Debug("conversation created", "conversation_id", conv.ID)
			return conv, nil
		}
		// Another request may have created the pair between our lookup and
		// insert attempt
		if errors.Is(err, store.ErrDuplicateConversation) {
			conv, lookupErr := s.store.GetConversationByPair(ctx, pair[0], pair[1])
			if lookupErr == nil {
				s.logger.Debug("found existing conversation after race", "conversation_id", conv.ID)
				return conv, nil
			}
			s.logger.Error("retry lookup failed after duplicate error", "lookup_error", lookupErr)
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	conv, err := s.store.CreateConversation(ctx, name, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Debug("conversation created",
		"conversation_id", conv.ID,
		"members", len(conv.MemberIDs))
	return conv, nil
}

// ListMessages returns one page of the conversation's messages in ascending
// display order with pagination metadata. Returns ErrNotFound if the
// conversation does not exist or the requester is not a member.
func (s *Service) ListMessages(ctx context.Context, conversationID, requesterID int64, p store.PageParams) (*MessageList, error) {
	if _, err := s.fetchForMember(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	page, err := s.store.PageMessages(ctx, conversationID, p)
	if err != nil {
		return nil, fmt.Errorf("paging messages: %w", err)
	}

	// Store pages newest first; reverse to ascending for display
	messages := make([]*store.Message, len(page.Messages))
	for i, m := range page.Messages {
		messages[len(messages)-1-i] = m
	}

	return &MessageList{
		Messages:   messages,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}, nil
}

// InsertMessage appends a message authored by the requester. Returns
// ErrNotFound if the conversation does not exist or the requester is not a
// member, ErrEmptyText if the text is blank.
func (s *Service) InsertMessage(ctx context.Context, conversationID, requesterID int64, text string) (*store.Message, error) {
	if _, err := s.fetchForMember(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	msg, err := s.store.InsertMessage(ctx, conversationID, requesterID, text)
	if err != nil {
		if errors.Is(err, store.ErrEmptyText) {
			return nil, err
		}
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("message inserted",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"author_id", requesterID)
	return msg, nil
}

// StartTyping broadcasts a typing-started event to the other members.
func (s *Service) StartTyping(ctx context.Context, conversationID, requesterID int64) (*store.Conversation, error) {
	return s.pushTyping(ctx, conversationID, requesterID, true)
}

// StopTyping broadcasts a typing-stopped event to the other members.
func (s *Service) StopTyping(ctx context.Context, conversationID, requesterID int64) (*store.Conversation, error) {
	return s.pushTyping(ctx, conversationID, requesterID, false)
}

// pushTyping fans a typing event out to every member except the requester.
// Returns ErrNotFound for a missing conversation or a non-member requester.
func (s *Service) pushTyping(ctx context.Context, conversationID, requesterID int64, started bool) (*store.Conversation, error) {
	conv, err := s.fetchForMember(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}

	name, err := s.resolver.Title(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("resolving requester title: %w", err)
	}

	kind := EventTyping
	if !started {
		kind = EventTypingStopped
	}

	recipients := distinctExcluding(conv.MemberIDs, requesterID)
	s.pusher.PushToUsers(kind, &TypingEvent{
		ConversationID: conversationID,
		UserID:         requesterID,
		Name:           name,
		Started:        started,
	}, recipients)

	s.decorate(ctx, conv, requesterID)
	return conv, nil
}

// MarkRead advances the requester's read cursor to now and returns the
// refreshed conversation.
func (s *Service) MarkRead(ctx context.Context, conversationID, requesterID int64) (*store.Conversation, error) {
	if err := s.store.SetRead(ctx, conversationID, requesterID, time.Now()); err != nil {
		return nil, fmt.Errorf("marking conversation read: %w", err)
	}

	conv, err := s.fetchForMember(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, conv, requesterID)
	return conv, nil
}

// UnreadCount returns the number of conversations with activity the
// requester has not read yet.
func (s *Service) UnreadCount(ctx context.Context, requesterID int64) (int, error) {
	convs, err := s.store.UnreadConversations(ctx, requesterID)
	if err != nil {
		return 0, fmt.Errorf("listing unread conversations: %w", err)
	}
	return len(convs), nil
}

// fetchForMember retrieves the conversation and verifies membership.
// Non-membership is reported as not-found so outsiders cannot probe for
// conversation existence.
func (s *Service) fetchForMember(ctx context.Context, conversationID, requesterID int64) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}
	if !conv.IsMember(requesterID) {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, store.ErrNotFound)
	}
	return conv, nil
}

// decorate fills in the lazily derived title for unnamed one-on-one
// conversations: the counterpart's resolved title. Best-effort presentation,
// a failed resolution leaves the name empty.
func (s *Service) decorate(ctx context.Context, conv *store.Conversation, requesterID int64) {
	if conv.Name != "" || len(conv.MemberIDs) != 2 {
		return
	}
	for _, id := range conv.MemberIDs {
		if id == requesterID {
			continue
		}
		title, err := s.resolver.Title(ctx, id)
		if err != nil {
			s.logger.Debug("title resolution failed",
				"user_id", id,
				"error", err)
			return
		}
		conv.Name = title
		return
	}
}

// countDistinct returns the number of distinct ids
func countDistinct(ids []int64) int {
	return len(distinct(ids))
}

// distinct returns the distinct ids in first-seen order
func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var out []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// distinctExcluding returns the distinct ids with one id removed
func distinctExcluding(ids []int64, exclude int64) []int64 {
	var out []int64
	for _, id := range distinct(ids) {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
