// Package store provides persistent storage for parley using SQLite.
//
// # Data Models
//
//   - Conversation: a thread between two or more members, with a per-member
//     read cursor and a derived last-activity timestamp
//   - Message: immutable, append-only, ordered by id within a conversation
//   - User: a registered account backing identity resolution
//
// # Conversation Semantics
//
// One-on-one conversations are unique per unordered member pair. The pair
// key ("min:max" of the two member ids) carries a unique index, so a
// concurrent duplicate creation surfaces as ErrDuplicateConversation and
// the caller re-looks-up the winner. Group conversations (three or more
// members) are never deduplicated.
//
// Read cursors are monotonic per member: SetRead only ever advances the
// cursor, so an out-of-order delivery of an older mark-read is a no-op.
//
// # Pagination
//
// PageMessages returns messages newest first with an opaque base64 cursor
// keyed on message id. Because ids only grow, a cursor walk is stable under
// concurrent inserts: no message is skipped or duplicated relative to the
// ordering that existed when the walk started.
//
// # SQLite Configuration
//
// The store uses WAL mode for concurrent reads, enforced foreign keys, and
// a busy timeout so concurrent writers queue rather than erroring. All
// pragmas are set through the DSN so they cover every pooled connection.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: one-on-one pair already has a conversation
//   - ErrDuplicateUser: username already taken
//   - ErrEmptyText, ErrNoMembers: validation failures
//
// All methods accept context.Context for cancellation support.
package store
