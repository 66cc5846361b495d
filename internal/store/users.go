// ABOUTME: User persistence for the SQLite store
// ABOUTME: Backs identity resolution and requester lookup at the HTTP edge

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateUser inserts a user. Usernames are unique; DisplayName may be empty.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, created_at) VALUES (?, ?, ?)`,
		username, displayName, formatTime(now),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("user created", "user_id", id, "username", username)

	return &User{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   now.UTC(),
	}, nil
}

// GetUser retrieves a user by ID
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	user := &User{}
	var createdStr string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &createdStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if user.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all users ordered by id
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, display_name, created_at FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		var createdStr string
		if err := rows.Scan(&user.ID, &user.Username, &user.DisplayName, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		if user.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}
