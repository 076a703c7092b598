package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/provider"
)

// toolCallBuffer assembles one tool call whose argument payload arrives
// spread across chunks.
type toolCallBuffer struct {
	id   string
	name string
	args strings.Builder
}

// parseSSEStream reads Chat Completions SSE chunks from body and emits
// provider events on ch. Content deltas are routed through the think-tag
// scanner, reasoning_content deltas map straight to thinking events, and
// tool-call argument fragments are buffered per choice index until the
// stream finishes, then released as one terminal tool_calls event. Token
// usage, when the backend reports it, goes to the metrics registry under
// metricsLabel.
//
// A chunk that fails to decode fails the whole stream: a half-parsed turn
// must not look like a complete one.
func parseSSEStream(ctx context.Context, body io.Reader, metricsLabel string, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	think := provider.NewThinkScanner()
	calls := make(map[int]*toolCallBuffer)
	var order []int

	// Set once the turn's terminal event went out. The stream is still
	// read to its end because the usage trailer arrives after the
	// finish_reason chunk.
	finished := false

	finish := func() {
		finished = true
		for _, ev := range think.Flush() {
			if !send(ctx, ch, ev) {
				return
			}
		}
		if batch := drainToolCalls(calls, order); len(batch) > 0 {
			send(ctx, ch, provider.Event{Type: provider.EventToolCalls, Calls: batch})
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines without a data field are framing noise: blank
		// separators, comments starting with ":".
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		if payload == "[DONE]" {
			if !finished {
				finish()
			}
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			if finished {
				return
			}
			send(ctx, ch, provider.Event{
				Type: provider.EventError,
				Err:  api.NewBackendError(fmt.Sprintf("decoding stream chunk: %v", err)),
			})
			return
		}

		if chunk.Usage != nil {
			recordUsage(metricsLabel, chunk.Model, chunk.Usage)
		}

		// A usage-only trailer has no choices.
		if finished || len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		for _, tc := range delta.ToolCalls {
			buf, exists := calls[tc.Index]
			if !exists {
				buf = &toolCallBuffer{id: tc.ID, name: tc.Function.Name}
				calls[tc.Index] = buf
				order = append(order, tc.Index)
			} else {
				// Late id or name on a continuation chunk fills the gaps
				// a sparse first chunk left.
				if buf.id == "" {
					buf.id = tc.ID
				}
				if buf.name == "" {
					buf.name = tc.Function.Name
				}
			}
			buf.args.WriteString(tc.Function.Arguments)
		}

		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			if !send(ctx, ch, provider.Event{Type: provider.EventThinking, Content: *delta.ReasoningContent}) {
				return
			}
		}

		if delta.Content != nil && *delta.Content != "" {
			for _, ev := range think.Feed(*delta.Content) {
				if !send(ctx, ch, ev) {
					return
				}
			}
		}

		// The finish check runs last: some backends attach the final
		// content fragment or tool-call tail to the finish chunk itself.
		if choice.FinishReason != nil {
			finish()
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || finished {
			return
		}
		send(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  api.NewTransportError(fmt.Sprintf("backend stream read error: %v", err)),
		})
		return
	}

	// EOF without [DONE]: flush what arrived rather than dropping it.
	if !finished {
		finish()
	}
}

// drainToolCalls converts the buffered fragments into finished tool calls
// in chunk arrival order and resets the buffers. Calls missing an id get a
// synthesized one so downstream pairing always has a key.
func drainToolCalls(calls map[int]*toolCallBuffer, order []int) []api.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]api.ToolCall, 0, len(calls))
	for _, idx := range order {
		buf, ok := calls[idx]
		if !ok {
			continue
		}
		id := buf.id
		if id == "" {
			id = api.NewCallID()
		}
		args := strings.TrimSpace(buf.args.String())
		if args == "" {
			args = "{}"
		}
		out = append(out, api.ToolCall{ID: id, Name: buf.name, Arguments: args})
		delete(calls, idx)
	}
	return out
}

// recordUsage publishes backend-reported token counts.
func recordUsage(label, model string, usage *ChatUsage) {
	if usage.PromptTokens > 0 {
		observability.ProviderTokensTotal.WithLabelValues(label, model, "input").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		observability.ProviderTokensTotal.WithLabelValues(label, model, "output").Add(float64(usage.CompletionTokens))
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
