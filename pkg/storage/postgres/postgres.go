// Package postgres provides a PostgreSQL implementation of
// transport.ConversationStore. It uses pgx/v5 for connection pooling and
// JSONB for tool-call storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/storage"
	"github.com/denker-ai/denker/pkg/transport"
)

// PostgreSQL error codes checked for sentinel mapping.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a PostgreSQL-backed ConversationStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.Title, conv.CreatedAt.UTC(), conv.UpdatedAt.UTC(),
	)
	if err != nil {
		if isPgError(err, codeUniqueViolation) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	var conv api.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
		 ORDER BY updated_at %s, id %s LIMIT $1`, order, order)
	args := []any{limit + 1}

	if opts.After != "" {
		var cursorUpdated time.Time
		err := s.pool.QueryRow(ctx,
			`SELECT updated_at FROM conversations WHERE id = $1`, opts.After,
		).Scan(&cursorUpdated)
		if errors.Is(err, pgx.ErrNoRows) {
			return &transport.ConversationList{Object: "list", Data: []*api.Conversation{}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		query = fmt.Sprintf(
			`SELECT id, title, created_at, updated_at FROM conversations
			 WHERE (updated_at %[1]s $1) OR (updated_at = $1 AND id %[1]s $2)
			 ORDER BY updated_at %[2]s, id %[2]s LIMIT $3`, cmp, order)
		args = []any{cursorUpdated, opts.After, limit + 1}
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
	result, err := s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; the messages go with it via
// the ON DELETE CASCADE constraint, so one statement deletes both
// atomically.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveMessage appends a message to the conversation, assigning its ID,
// position, and timestamp. Position assignment and insert happen in one
// statement.
func (s *Store) SaveMessage(ctx context.Context, conversationID string, msg api.Message) (*api.StoredMessage, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`, conversationID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	toolCallsJSON, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return nil, err
	}

	stored := api.StoredMessage{
		ID:             api.NewMessageID(),
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
		Message:        msg,
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, position, role, content, tool_calls, tool_call_id, created_at)
		SELECT $1, $2, COALESCE(MAX(position)+1, 0), $3, $4, $5, $6, $7
		FROM messages WHERE conversation_id = $2
		RETURNING position
	`,
		stored.ID, conversationID, string(msg.Role), msg.Content,
		toolCallsJSON, msg.ToolCallID, stored.CreatedAt,
	).Scan(&stored.Position)
	if err != nil {
		// The conversation can disappear between the check and the insert.
		if isPgError(err, codeForeignKeyViolation) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	return &stored, nil
}

// ListMessages returns the conversation's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]api.StoredMessage, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`, conversationID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, position, role, content, tool_calls, tool_call_id, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY position
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []api.StoredMessage{}
	for rows.Next() {
		var (
			stored        api.StoredMessage
			role          string
			toolCallsJSON []byte
		)
		if err := rows.Scan(&stored.ID, &stored.Position, &role, &stored.Content,
			&toolCallsJSON, &stored.ToolCallID, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		stored.ConversationID = conversationID
		stored.Role = api.Role(role)
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &stored.ToolCalls); err != nil {
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
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// marshalToolCalls serializes tool calls for the nullable JSONB column;
// empty call lists stay NULL.
func marshalToolCalls(calls []api.ToolCall) ([]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool calls: %w", err)
	}
	return data, nil
}

// isPgError checks whether err is a PostgreSQL error with the given code.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
