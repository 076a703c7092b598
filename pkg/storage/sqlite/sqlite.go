// Package sqlite provides a SQLite implementation of
// transport.ConversationStore, the default backend for local use. It uses
// the pure-Go modernc.org/sqlite driver, so no cgo is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/storage"
	"github.com/denker-ai/denker/pkg/transport"
)

// Store is a SQLite-backed ConversationStore.
type Store struct {
	db *sql.DB
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated
	ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	tool_calls      TEXT,
	tool_call_id    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	UNIQUE (conversation_id, position)
);
`

// New opens (or creates) the database at path and ensures the schema
// exists. An empty path opens an in-memory database, useful for tests.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must not
	// grow beyond one.
	if path == "" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt.UTC(), conv.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	var conv api.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`,
		id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns a paginated list ordered by update time.
func (s *Store) ListConversations(ctx context.Context, opts transport.ListOptions) (*transport.ConversationList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"
	order := "DESC"
	cmp := "<"
	if asc {
		order = "ASC"
		cmp = ">"
	}

	query := fmt.Sprintf(
		`SELECT id, title, created_at, updated_at FROM conversations
		 ORDER BY updated_at %s, id %s LIMIT ?`, order, order)
	args := []any{limit + 1}

	if opts.After != "" {
		var cursorUpdated time.Time
		err := s.db.QueryRowContext(ctx,
			`SELECT updated_at FROM conversations WHERE id = ?`, opts.After,
		).Scan(&cursorUpdated)
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown cursor yields an empty page rather than an error.
			return &transport.ConversationList{Object: "list", Data: []*api.Conversation{}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		query = fmt.Sprintf(
			`SELECT id, title, created_at, updated_at FROM conversations
			 WHERE (updated_at %[1]s ?) OR (updated_at = ? AND id %[1]s ?)
			 ORDER BY updated_at %[2]s, id %[2]s LIMIT ?`, cmp, order)
		args = []any{cursorUpdated, cursorUpdated, opts.After, limit + 1}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var matches []*api.Conversation
	for rows.Next() {
		var conv api.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		matches = append(matches, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &transport.ConversationList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Conversation{}
	}
	return result, nil
}

// TouchConversation bumps the conversation's updated_at timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and all its messages in one
// transaction.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return tx.Commit()
}

// SaveMessage appends a message to the conversation, assigning its ID,
// position, and timestamp inside one transaction.
func (s *Store) SaveMessage(ctx context.Context, conversationID string, msg api.Message) (*api.StoredMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = ?)`, conversationID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("assigning position: %w", err)
	}

	stored := api.StoredMessage{
		ID:             api.NewMessageID(),
		ConversationID: conversationID,
		Position:       position,
		CreatedAt:      time.Now().UTC(),
		Message:        msg,
	}

	toolCallsJSON, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, position, role, content, tool_calls, tool_call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, conversationID, position, string(msg.Role), msg.Content,
		toolCallsJSON, msg.ToolCallID, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return &stored, nil
}

// ListMessages returns the conversation's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]api.StoredMessage, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = ?)`, conversationID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, role, content, tool_calls, tool_call_id, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY position`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []api.StoredMessage{}
	for rows.Next() {
		var (
			stored        api.StoredMessage
			role          string
			toolCallsJSON sql.NullString
		)
		if err := rows.Scan(&stored.ID, &stored.Position, &role, &stored.Content,
			&toolCallsJSON, &stored.ToolCallID, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		stored.ConversationID = conversationID
		stored.Role = api.Role(role)
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &stored.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshaling tool calls of %s: %w", stored.ID, err)
			}
		}
		msgs = append(msgs, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// marshalToolCalls serializes tool calls for the nullable tool_calls
// column; empty call lists stay NULL.
func marshalToolCalls(calls []api.ToolCall) (any, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool calls: %w", err)
	}
	return string(data), nil
}

// isUniqueViolation checks for a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
