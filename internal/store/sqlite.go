// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/member/read-cursor persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width RFC3339 variant. Fixed width keeps string
// comparison in SQL consistent with chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go in the DSN so they apply to every pooled connection:
	// WAL for concurrent readers, foreign keys on, busy timeout so
	// concurrent writers queue instead of failing with SQLITE_BUSY.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT '',
			pair_key TEXT,
			created_at TEXT NOT NULL
		);

		-- pair_key is "min:max" of the member ids for one-on-one
		-- conversations and NULL for groups; the unique index is what makes
		-- pair creation idempotent under races.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair
			ON conversations(pair_key) WHERE pair_key IS NOT NULL;

		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			read_at TEXT,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_members_user
			ON conversation_members(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			author_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, id);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// pairKey returns the canonical dedup key for a two-member conversation.
func pairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// CreateConversation inserts a conversation and its membership rows.
// memberIDs are deduplicated; fewer than two distinct members is a
// validation error. For exactly two members a pair key is recorded, and a
// pre-existing conversation for that pair returns ErrDuplicateConversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, name string, memberIDs []int64) (*Conversation, error) {
	members := dedupeIDs(memberIDs)
	if len(members) < 2 {
		return nil, ErrNoMembers
	}

	var key *string
	if len(members) == 2 {
		k := pairKey(members[0], members[1])
		key = &k
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (name, pair_key, created_at) VALUES (?, ?, ?)`,
		name, key, formatTime(now),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateConversation
		}
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading conversation id: %w", err)
	}

	for _, m := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES (?, ?)`,
			id, m,
		); err != nil {
			return nil, fmt.Errorf("inserting member %d: %w", m, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateConversation
		}
		return nil, fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("conversation created",
		"conversation_id", id,
		"members", len(members))

	return &Conversation{
		ID:        id,
		Name:      name,
		MemberIDs: members,
		CreatedAt: now.UTC(),
	}, nil
}

// GetConversation retrieves a conversation with its members by ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	query := `
		SELECT c.id, c.name, c.created_at,
		       (SELECT MAX(created_at) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.id = ?
	`
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadMembers(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversationByPair retrieves the one-on-one conversation for the given
// member pair, in either order
func (s *SQLiteStore) GetConversationByPair(ctx context.Context, a, b int64) (*Conversation, error) {
	query := `
		SELECT c.id, c.name, c.created_at,
		       (SELECT MAX(created_at) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.pair_key = ?
	`
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, query, pairKey(a, b)))
	if err != nil {
		return nil, err
	}
	if err := s.loadMembers(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations retrieves the member's conversations ordered by most
// recent activity descending. The member's read cursor is included.
func (s *SQLiteStore) ListConversations(ctx context.Context, memberID int64) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.name, c.created_at, cm.read_at,
		       (SELECT MAX(created_at) FROM messages m WHERE m.conversation_id = c.id) AS last_message_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = ?
		ORDER BY COALESCE(last_message_at, c.created_at) DESC, c.id DESC
	`
	return s.queryConversations(ctx, query, memberID)
}

// SetRead advances the member's read cursor to at. The cursor is monotonic:
// an older timestamp is ignored. Unknown conversations or members are a
// silent no-op, it is a best-effort signal.
func (s *SQLiteStore) SetRead(ctx context.Context, conversationID, memberID int64, at time.Time) error {
	ts := formatTime(at)
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversation_members
		SET read_at = ?
		WHERE conversation_id = ? AND user_id = ?
		  AND (read_at IS NULL OR read_at < ?)
	`, ts, conversationID, memberID, ts)
	if err != nil {
		return fmt.Errorf("setting read cursor: %w", err)
	}
	return nil
}

// UnreadConversations retrieves conversations where another member has
// posted since the member's read cursor (or the member has never read and
// another member has posted at all). Ordered by newest unread activity.
func (s *SQLiteStore) UnreadConversations(ctx context.Context, memberID int64) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.name, c.created_at, cm.read_at, latest.last_message_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = ?
		JOIN (
			SELECT conversation_id, MAX(created_at) AS last_message_at
			FROM messages
			WHERE author_id != ?
			GROUP BY conversation_id
		) latest ON latest.conversation_id = c.id
		WHERE cm.read_at IS NULL OR cm.read_at < latest.last_message_at
		ORDER BY latest.last_message_at DESC
	`
	return s.queryConversations(ctx, query, memberID, memberID)
}

// conversationRow abstracts sql.Row/sql.Rows scanning
type conversationRow interface {
	Scan(dest ...any) error
}

// scanConversation scans id, name, created_at, last_message_at.
// Used for queries without a read cursor column.
func (s *SQLiteStore) scanConversation(row conversationRow) (*Conversation, error) {
	conv := &Conversation{}
	var createdStr string
	var lastMsgStr *string

	err := row.Scan(&conv.ID, &conv.Name, &createdStr, &lastMsgStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if conv.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if err := assignTime(&conv.LastMessageAt, lastMsgStr); err != nil {
		return nil, err
	}
	return conv, nil
}

// queryConversations runs a member-scoped query selecting
// id, name, created_at, read_at, last_message_at and loads members.
func (s *SQLiteStore) queryConversations(ctx context.Context, query string, args ...any) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		var createdStr string
		var readStr, lastMsgStr *string

		if err := rows.Scan(&conv.ID, &conv.Name, &createdStr, &readStr, &lastMsgStr); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		if conv.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if err := assignTime(&conv.ReadAt, readStr); err != nil {
			return nil, err
		}
		if err := assignTime(&conv.LastMessageAt, lastMsgStr); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	for _, conv := range convs {
		if err := s.loadMembers(ctx, conv); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// loadMembers fills in MemberIDs for the conversation
func (s *SQLiteStore) loadMembers(ctx context.Context, conv *Conversation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = ? ORDER BY user_id`,
		conv.ID,
	)
	if err != nil {
		return fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	conv.MemberIDs = nil
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning member row: %w", err)
		}
		conv.MemberIDs = append(conv.MemberIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating member rows: %w", err)
	}
	return nil
}

// assignTime parses an optional timestamp column into dst
func assignTime(dst **time.Time, s *string) error {
	if s == nil {
		return nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	*dst = &t
	return nil
}

// dedupeIDs returns the distinct ids in ascending order
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
