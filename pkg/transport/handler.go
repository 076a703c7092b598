package transport

import (
	"context"

	"github.com/denker-ai/denker/pkg/api"
)

// ChatStreamer handles the core chat operation. The implementation
// validates the request and writes the run's event stream to the
// EventWriter. A returned error describes the failure regardless of how
// far the stream got; the transport decides whether to report it as an
// HTTP error or an in-band error event based on the stream state.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error
}

// ChatStreamerFunc is an adapter that allows using an ordinary function
// as a ChatStreamer.
type ChatStreamerFunc func(ctx context.Context, req *api.ChatRequest, w EventWriter) error

// StreamChat calls f(ctx, req, w).
func (f ChatStreamerFunc) StreamChat(ctx context.Context, req *api.ChatRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// EventWriter abstracts the outbound event stream. The transport layer
// creates one per request; the handler emits loop events through it.
//
// WriteEvent returns an error when called after a terminal event (done) has
// been written, and Flush returns an error once the client has disconnected.
type EventWriter interface {
	// WriteEvent sends a single event to the client.
	WriteEvent(ctx context.Context, event api.LoopEvent) error

	// Flush pushes buffered data to the client.
	Flush() error
}

// ListOptions controls pagination and ordering for conversation listings.
type ListOptions struct {
	After string // Cursor: return conversations after this ID.
	Limit int    // Maximum number of entries (default 20, max 100).
	Order string // Sort order by update time: "asc" or "desc" (default "desc").
}

// ConversationList holds a paginated list of conversations.
type ConversationList struct {
	Object  string              `json:"object"`
	Data    []*api.Conversation `json:"data"`
	HasMore bool                `json:"has_more"`
	FirstID string              `json:"first_id,omitempty"`
	LastID  string              `json:"last_id,omitempty"`
}

// ConversationStore persists conversations and their ordered message
// history. Implementations live under pkg/storage; they return
// storage.ErrNotFound and storage.ErrConflict as sentinel errors.
//
// Saved messages keep insertion order: an assistant message carrying tool
// calls is always followed by one tool message per call id, in call order,
// before the next assistant message.
type ConversationStore interface {
	// CreateConversation persists a new conversation. Returns ErrConflict
	// if the ID is already taken.
	CreateConversation(ctx context.Context, conv *api.Conversation) error

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)

	// ListConversations returns a paginated list ordered by update time.
	ListConversations(ctx context.Context, opts ListOptions) (*ConversationList, error)

	// TouchConversation bumps the conversation's updated_at timestamp.
	TouchConversation(ctx context.Context, id string) error

	// DeleteConversation removes the conversation and all its messages
	// atomically.
	DeleteConversation(ctx context.Context, id string) error

	// SaveMessage appends a message to the conversation, assigning its ID,
	// position, and timestamp. Returns ErrNotFound for an unknown
	// conversation.
	SaveMessage(ctx context.Context, conversationID string, msg api.Message) (*api.StoredMessage, error)

	// ListMessages returns the conversation's messages in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]api.StoredMessage, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
