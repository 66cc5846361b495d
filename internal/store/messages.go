// ABOUTME: Message persistence and keyset pagination for the SQLite store
// ABOUTME: Append-only inserts plus newest-first paging with opaque cursors

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

// InsertMessage appends a message to the conversation. The autoincrement id
// is assigned inside SQLite's single-writer transaction, so concurrent
// inserts never produce duplicate or reordered ids.
func (s *SQLiteStore) InsertMessage(ctx context.Context, conversationID, authorID int64, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var exists int64
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conversationID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, author_id, text, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, authorID, text, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	s.logger.Debug("message inserted",
		"conversation_id", conversationID,
		"message_id", id,
		"author_id", authorID)

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		AuthorID:       authorID,
		Text:           text,
		CreatedAt:      now.UTC(),
	}, nil
}

// PageMessages retrieves one page of messages, newest first. The cursor
// pins the page boundary to a message id, so pages are stable under
// concurrent inserts: new messages only ever get higher ids and never show
// up in older pages.
func (s *SQLiteStore) PageMessages(ctx context.Context, conversationID int64, p PageParams) (*MessagePage, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var beforeID int64
	if p.Cursor != "" {
		var err error
		beforeID, err = decodeMessageCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}
	}

	query := `
		SELECT id, conversation_id, author_id, text, created_at
		FROM messages
		WHERE conversation_id = ?
	`
	args := []any{conversationID}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	// Fetch one extra row to detect whether an older page exists
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		var createdStr string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.AuthorID, &msg.Text, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if msg.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	page := &MessagePage{}
	if len(messages) > limit {
		page.HasMore = true
		messages = messages[:limit]
	}
	page.Messages = messages
	if page.HasMore && len(messages) > 0 {
		page.NextCursor = encodeMessageCursor(messages[len(messages)-1].ID)
	}
	return page, nil
}

// encodeMessageCursor creates an opaque cursor from a message id.
// Format is base64("msg|<id>").
func encodeMessageCursor(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("msg|%d", id)))
}

// decodeMessageCursor parses an opaque cursor back into a message id.
// Returns an error if the cursor is invalid.
func decodeMessageCursor(cursor string) (int64, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] != "msg" {
		return 0, fmt.Errorf("invalid cursor format: expected msg|id")
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid cursor id: %q", parts[1])
	}
	return id, nil
}
