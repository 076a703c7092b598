package api

import (
	"fmt"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessageSize int
	MaxMessages    int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessageSize: 1 << 20, // 1 MB
		MaxMessages:    1000,
	}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request
// is valid.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if req.Message == "" {
		return NewValidationError("message", "message is required")
	}
	if !utf8.ValidString(req.Message) {
		return NewValidationError("message", "message must be valid UTF-8")
	}
	if cfg.MaxMessageSize > 0 && len(req.Message) > cfg.MaxMessageSize {
		return NewValidationError("message",
			fmt.Sprintf("message exceeds maximum of %d bytes", cfg.MaxMessageSize))
	}
	if req.ConversationID != "" && !ValidateConversationID(req.ConversationID) {
		return NewValidationError("conversation_id", "invalid conversation ID format")
	}
	return nil
}

// ValidateMessages checks a message list for structural validity: known
// roles, and tool-role messages carrying the call id that links them to an
// earlier assistant dispatch.
func ValidateMessages(msgs []Message, cfg ValidationConfig) *APIError {
	if len(msgs) == 0 {
		return NewValidationError("messages", "messages must contain at least one entry")
	}
	if cfg.MaxMessages > 0 && len(msgs) > cfg.MaxMessages {
		return NewValidationError("messages",
			fmt.Sprintf("messages exceed maximum of %d entries", cfg.MaxMessages))
	}

	seen := make(map[string]bool)
	for i, m := range msgs {
		if !m.Role.Valid() {
			return NewValidationError("role",
				fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
		}
		if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
			return NewValidationError("tool_calls",
				fmt.Sprintf("messages[%d]: tool_calls only valid on assistant messages", i))
		}
		for _, tc := range m.ToolCalls {
			seen[tc.ID] = true
		}
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				return NewValidationError("tool_call_id",
					fmt.Sprintf("messages[%d]: tool messages require tool_call_id", i))
			}
			if !seen[m.ToolCallID] {
				return NewValidationError("tool_call_id",
					fmt.Sprintf("messages[%d]: tool_call_id %q has no preceding assistant tool call", i, m.ToolCallID))
			}
		}
	}
	return nil
}
