// ABOUTME: HTTP handlers and JSON models for the conversations REST API
// ABOUTME: Maps requests onto conversation service operations 1:1

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	Members []int64 `json:"members"`
}

// InsertMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type InsertMessageRequest struct {
	Text string `json:"text"`
}

// ConversationResponse is the JSON representation of a conversation.
type ConversationResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name,omitempty"`
	MemberIDs     []int64 `json:"member_ids"`
	CreatedAt     string  `json:"created_at"`
	ReadAt        *string `json:"read_at,omitempty"`
	LastMessageAt *string `json:"last_message_at,omitempty"`
}

// MessageResponse is the JSON representation of a message.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	AuthorID       int64  `json:"author_id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
}

// ScrollableMessagesResponse is one page of messages in ascending order.
// Next is the URI of the following (older) page, derived from the request
// URI, empty on the last page.
type ScrollableMessagesResponse struct {
	Data []MessageResponse `json:"data"`
	Next string            `json:"next,omitempty"`
}

func conversationToResponse(c *store.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:        c.ID,
		Name:      c.Name,
		MemberIDs: c.MemberIDs,
		CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
	}
	if c.ReadAt != nil {
		s := c.ReadAt.Format(time.RFC3339Nano)
		resp.ReadAt = &s
	}
	if c.LastMessageAt != nil {
		s := c.LastMessageAt.Format(time.RFC3339Nano)
		resp.LastMessageAt = &s
	}
	return resp
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		AuthorID:       m.AuthorID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339Nano),
	}
}

// requester pulls the authenticated user off the request context. The auth
// middleware guarantees it for /api routes.
func (s *Server) requester(w http.ResponseWriter, r *http.Request) (*auth.Requester, bool) {
	req := auth.RequesterFromContext(r.Context())
	if req == nil {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return nil, false
	}
	return req, true
}

// conversationID parses the {id} path parameter. An unparsable id behaves
// like a missing conversation.
func (s *Server) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeJSON(w, http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("conversation with id %q not found", raw),
		})
		return 0, false
	}
	return id, true
}

// handleGetConversation handles GET /api/conversations/{id}.
// Viewing the conversation advances the requester's read cursor.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	conv, err := s.svc.GetConversation(r.Context(), id, req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// handleListConversations handles GET /api/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}

	convs, err := s.svc.ListConversations(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]ConversationResponse, 0, len(convs))
	for _, c := range convs {
		resp = append(resp, conversationToResponse(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCreateConversation handles POST /api/conversations.
// Creates a new conversation, or returns the existing one-on-one.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}

	var body CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	conv, err := s.svc.CreateConversation(r.Context(), req.ID, body.Members)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// handleListMessages handles GET /api/conversations/{id}/messages.
// Supports cursor and limit query parameters; messages come back ascending.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	params := store.PageParams{Cursor: r.URL.Query().Get("cursor")}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		params.Limit = limit
	}

	list, err := s.svc.ListMessages(r.Context(), id, req.ID, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ScrollableMessagesResponse{Data: make([]MessageResponse, 0, len(list.Messages))}
	for _, m := range list.Messages {
		resp.Data = append(resp.Data, messageToResponse(m))
	}
	if list.HasMore {
		next := *r.URL
		q := next.Query()
		q.Set("cursor", list.NextCursor)
		next.RawQuery = q.Encode()
		resp.Next = next.RequestURI()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleInsertMessage handles POST /api/conversations/{id}/messages.
func (s *Server) handleInsertMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	var body InsertMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg, err := s.svc.InsertMessage(r.Context(), id, req.ID, body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageToResponse(msg))
}

// handleStartTyping handles POST /api/conversations/{id}/typing.
func (s *Server) handleStartTyping(w http.ResponseWriter, r *http.Request) {
	s.handleTyping(w, r, true)
}

// handleStopTyping handles DELETE /api/conversations/{id}/typing.
func (s *Server) handleStopTyping(w http.ResponseWriter, r *http.Request) {
	s.handleTyping(w, r, false)
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request, started bool) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	var conv *store.Conversation
	var err error
	if started {
		conv, err = s.svc.StartTyping(r.Context(), id, req.ID)
	} else {
		conv, err = s.svc.StopTyping(r.Context(), id, req.ID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// handleMarkRead handles POST /api/conversations/{id}/read.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}

	conv, err := s.svc.MarkRead(r.Context(), id, req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// handleUnreadCount handles GET /api/conversations/unread.
// Returns the bare number of unread conversations.
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}

	count, err := s.svc.UnreadCount(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, count)
}
