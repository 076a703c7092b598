package api

// LoopEventType discriminates the events emitted by an agent loop run.
type LoopEventType string

const (
	// EventConversation announces the persistent conversation id. Emitted
	// once by the request handler before the first model event.
	EventConversation LoopEventType = "conversation"

	// EventThinking carries a delta of hidden reasoning text.
	EventThinking LoopEventType = "thinking"

	// EventTextDelta carries a delta of user-visible text.
	EventTextDelta LoopEventType = "text_delta"

	// EventToolCall announces a tool invocation about to be dispatched.
	EventToolCall LoopEventType = "tool_call"

	// EventToolResult carries the string result of a dispatched call.
	EventToolResult LoopEventType = "tool_result"

	// EventText is the terminal compatibility event carrying the fully
	// accumulated visible text of the final turn. Consumers that collected
	// the deltas can ignore it.
	EventText LoopEventType = "text"

	// EventError reports a terminal failure. At most one precedes done.
	EventError LoopEventType = "error"

	// EventDone marks the end of the run. Always the last event emitted,
	// on success and error paths alike.
	EventDone LoopEventType = "done"
)

// LoopEvent is one event of an agent loop run, discriminated by Type.
// Exactly the fields relevant to the type are set.
type LoopEvent struct {
	Type LoopEventType `json:"type"`

	// Content for thinking, text_delta and text events; the error message
	// for error events.
	Content string `json:"content,omitempty"`

	// ConversationID for conversation events.
	ConversationID string `json:"conversation_id,omitempty"`

	// Call for tool_call events.
	Call *ToolCall `json:"call,omitempty"`

	// CallID and Result for tool_result events.
	CallID string `json:"call_id,omitempty"`
	Result string `json:"result,omitempty"`
}

// IsTerminal reports whether no further events follow this one.
func (e LoopEvent) IsTerminal() bool {
	return e.Type == EventDone
}

// ThinkingEvent builds a thinking delta event.
func ThinkingEvent(content string) LoopEvent {
	return LoopEvent{Type: EventThinking, Content: content}
}

// TextDeltaEvent builds a visible-text delta event.
func TextDeltaEvent(content string) LoopEvent {
	return LoopEvent{Type: EventTextDelta, Content: content}
}

// ToolCallEvent builds a tool dispatch announcement.
func ToolCallEvent(call ToolCall) LoopEvent {
	return LoopEvent{Type: EventToolCall, Call: &call}
}

// ToolResultEvent builds a tool result event.
func ToolResultEvent(callID, result string) LoopEvent {
	return LoopEvent{Type: EventToolResult, CallID: callID, Result: result}
}

// TextEvent builds the terminal compatibility text event.
func TextEvent(content string) LoopEvent {
	return LoopEvent{Type: EventText, Content: content}
}

// ConversationEvent builds the one-shot conversation announcement.
func ConversationEvent(id string) LoopEvent {
	return LoopEvent{Type: EventConversation, ConversationID: id}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) LoopEvent {
	return LoopEvent{Type: EventError, Content: message}
}

// DoneEvent builds the terminal success marker.
func DoneEvent() LoopEvent {
	return LoopEvent{Type: EventDone}
}
