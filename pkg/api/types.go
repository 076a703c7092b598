package api

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one conversation turn. Content may be empty when the message
// carries only tool calls (assistant dispatch turns). ToolCalls is set only
// on assistant messages that dispatch tools; ToolCallID only on tool-role
// messages, linking back to the originating call.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a single tool invocation issued by the model. Arguments is
// the argument payload serialized as one opaque string in canonical
// JSON-object form. ID is unique within the conversation; when the backend
// supplies none, the provider synthesizes one.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool offered to the model.
// Parameters is a JSON-Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Conversation is the persistent container for an ordered message history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is a Message as persisted, with its storage identity and
// position within the conversation.
type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Position       int       `json:"position"`
	CreatedAt      time.Time `json:"created_at"`
	Message
}

// ChatRequest is the body of POST /api/chat. ConversationID is optional;
// when empty a new conversation is created and announced via a conversation
// event before the first model event. Model and SystemPrompt override the
// server defaults for this run only.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Model          string `json:"model,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
}

// ModelInfo describes one model available at the backend.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}
