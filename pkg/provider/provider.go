package provider

import (
	"context"

	"github.com/denker-ai/denker/pkg/api"
)

// Provider abstracts a model backend capable of streaming one conversation
// turn at a time.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama").
	Name() string

	// Stream submits the request and returns a channel of events for one
	// turn. The sequence is finite and non-restartable: it ends either
	// after a terminal tool_calls event, after the last content delta of a
	// clean end-of-turn, or after a single error event. The channel is
	// closed when the turn is over. Errors detected before any event is
	// produced (bad request, non-success backend status) are returned
	// directly instead. Cancelling ctx aborts the backend request and
	// closes the channel.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// ListModels returns the models available at the backend.
	ListModels(ctx context.Context) ([]api.ModelInfo, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Request carries one conversation turn to the backend.
type Request struct {
	// Model identifies the backend model.
	Model string

	// Messages is the ordered conversation context. The provider reads it
	// only; ownership stays with the caller.
	Messages []api.Message

	// Tools is the catalogue offered to the model for this turn.
	Tools []api.ToolDefinition
}

// EventType discriminates provider stream events.
type EventType int

const (
	// EventThinking carries a delta of hidden reasoning text.
	EventThinking EventType = iota

	// EventTextDelta carries a delta of user-visible text.
	EventTextDelta

	// EventToolCalls carries the terminal batch of tool invocations that
	// ends the turn.
	EventToolCalls

	// EventError reports a mid-stream failure. Terminal.
	EventError
)

// String returns a human-readable event type name.
func (t EventType) String() string {
	switch t {
	case EventThinking:
		return "thinking"
	case EventTextDelta:
		return "text_delta"
	case EventToolCalls:
		return "tool_calls"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single element of a provider turn stream.
type Event struct {
	Type EventType

	// Content for thinking and text_delta events.
	Content string

	// Calls for tool_calls events.
	Calls []api.ToolCall

	// Err for error events.
	Err error
}
