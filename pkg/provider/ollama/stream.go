package ollama

import (
	"context"
	"errors"
	"io"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/provider"
)

// streamTurn reads one chat response stream and emits provider events on
// ch. NDJSON frames are decoded by frameReader, their content routed
// through the think-tag scanner, and tool calls collected until the stream
// finishes. The single terminal tool_calls event, when there is one, is
// sent after every content event so downstream consumers see a complete
// turn before dispatching tools.
func streamTurn(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	reader := newFrameReader(body)
	scanner := provider.NewThinkScanner()

	var pendingCalls []api.ToolCall

	finish := func() {
		for _, ev := range scanner.Flush() {
			if !send(ctx, ch, ev) {
				return
			}
		}
		if len(pendingCalls) > 0 {
			send(ctx, ch, provider.Event{Type: provider.EventToolCalls, Calls: pendingCalls})
		}
	}

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			finish()
			return
		}
		if err != nil {
			send(ctx, ch, provider.Event{Type: provider.EventError, Err: err})
			return
		}

		if frame.Error != "" {
			send(ctx, ch, provider.Event{Type: provider.EventError, Err: api.NewBackendError(frame.Error)})
			return
		}

		if frame.Message.Content != "" {
			for _, ev := range scanner.Feed(frame.Message.Content) {
				if !send(ctx, ch, ev) {
					return
				}
			}
		}

		// Some backends attach tool calls to a non-final frame, so collect
		// them wherever they appear.
		for _, call := range frame.Message.ToolCalls {
			id := call.ID
			if id == "" {
				id = api.NewCallID()
			}
			pendingCalls = append(pendingCalls, api.ToolCall{
				ID:        id,
				Name:      call.Function.Name,
				Arguments: normalizeArguments(call.Function.Arguments),
			})
		}

		if frame.Done {
			recordTokens(frame)
			finish()
			return
		}
	}
}

// recordTokens publishes the token counts the final frame reports.
func recordTokens(frame *chatFrame) {
	if frame.PromptEvalCount > 0 {
		observability.ProviderTokensTotal.WithLabelValues("ollama", frame.Model, "input").Add(float64(frame.PromptEvalCount))
	}
	if frame.EvalCount > 0 {
		observability.ProviderTokensTotal.WithLabelValues("ollama", frame.Model, "output").Add(float64(frame.EvalCount))
	}
}

// send delivers one event unless the consumer has gone away.
func send(ctx context.Context, ch chan<- provider.Event, ev provider.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
