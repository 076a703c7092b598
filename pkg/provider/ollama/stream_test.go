package ollama

import (
	"context"
	"strings"
	"testing"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/provider"
)

func runStream(t *testing.T, body string) []provider.Event {
	t.Helper()
	ch := make(chan provider.Event, 32)
	go func() {
		defer close(ch)
		streamTurn(context.Background(), strings.NewReader(body), ch)
	}()

	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamTurnTextFrames(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"Hello"},"done":false}
{"message":{"role":"assistant","content":" there"},"done":false}
{"message":{"role":"assistant","content":""},"done":true}
`
	events := runStream(t, body)

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want 2", len(events), events)
	}
	for i, want := range []string{"Hello", " there"} {
		if events[i].Type != provider.EventTextDelta {
			t.Errorf("event[%d].Type = %v, want text delta", i, events[i].Type)
		}
		if events[i].Content != want {
			t.Errorf("event[%d].Content = %q, want %q", i, events[i].Content, want)
		}
	}
}

func TestStreamTurnThinkTagsAcrossFrames(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"<thi"},"done":false}
{"message":{"role":"assistant","content":"nk>plan</think>answer"},"done":false}
{"message":{"role":"assistant","content":""},"done":true}
`
	events := runStream(t, body)

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want 2", len(events), events)
	}
	if events[0].Type != provider.EventThinking || events[0].Content != "plan" {
		t.Errorf("event[0] = %v %q, want thinking %q", events[0].Type, events[0].Content, "plan")
	}
	if events[1].Type != provider.EventTextDelta || events[1].Content != "answer" {
		t.Errorf("event[1] = %v %q, want text delta %q", events[1].Type, events[1].Content, "answer")
	}
}

func TestStreamTurnToolCalls(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Berlin"}}},{"function":{"name":"get_time","arguments":"{\"zone\":\"UTC\"}"}}]},"done":true}
`
	events := runStream(t, body)

	if len(events) != 1 {
		t.Fatalf("got %d events (%v), want 1", len(events), events)
	}
	ev := events[0]
	if ev.Type != provider.EventToolCalls {
		t.Fatalf("event type = %v, want tool calls", ev.Type)
	}
	if len(ev.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(ev.Calls))
	}

	first := ev.Calls[0]
	if first.Name != "get_weather" {
		t.Errorf("calls[0].Name = %q, want %q", first.Name, "get_weather")
	}
	if first.Arguments != `{"city":"Berlin"}` {
		t.Errorf("calls[0].Arguments = %q, want %q", first.Arguments, `{"city":"Berlin"}`)
	}
	if !strings.HasPrefix(first.ID, "call_") {
		t.Errorf("calls[0].ID = %q, want synthesized call_ id", first.ID)
	}

	second := ev.Calls[1]
	if second.Arguments != `{"zone":"UTC"}` {
		t.Errorf("calls[1].Arguments = %q, want %q", second.Arguments, `{"zone":"UTC"}`)
	}
	if first.ID == second.ID {
		t.Errorf("synthesized ids collide: %q", first.ID)
	}
}

func TestStreamTurnToolCallsOnEarlyFrame(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_keep","function":{"name":"lookup","arguments":{}}}]},"done":false}
{"message":{"role":"assistant","content":""},"done":true}
`
	events := runStream(t, body)

	if len(events) != 1 {
		t.Fatalf("got %d events (%v), want 1", len(events), events)
	}
	if events[0].Type != provider.EventToolCalls {
		t.Fatalf("event type = %v, want tool calls", events[0].Type)
	}
	if events[0].Calls[0].ID != "call_keep" {
		t.Errorf("call ID = %q, want provided id kept", events[0].Calls[0].ID)
	}
}

func TestStreamTurnContentBeforeToolCalls(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"checking"},"done":false}
{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"check","arguments":{}}}]},"done":true}
`
	events := runStream(t, body)

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want 2", len(events), events)
	}
	if events[0].Type != provider.EventTextDelta {
		t.Errorf("event[0].Type = %v, want text delta first", events[0].Type)
	}
	if events[1].Type != provider.EventToolCalls {
		t.Errorf("event[1].Type = %v, want tool calls last", events[1].Type)
	}
}

func TestStreamTurnFlushesPendingTagBeforeToolCalls(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"done <thi"},"done":false}
{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"f","arguments":{}}}]},"done":true}
`
	events := runStream(t, body)

	if len(events) != 3 {
		t.Fatalf("got %d events (%v), want 3", len(events), events)
	}
	if events[0].Type != provider.EventTextDelta || events[0].Content != "done " {
		t.Errorf("event[0] = %v %q, want text delta %q", events[0].Type, events[0].Content, "done ")
	}
	if events[1].Type != provider.EventTextDelta || events[1].Content != "<thi" {
		t.Errorf("event[1] = %v %q, want flushed text delta %q", events[1].Type, events[1].Content, "<thi")
	}
	if events[2].Type != provider.EventToolCalls {
		t.Errorf("event[2].Type = %v, want tool calls", events[2].Type)
	}
}

func TestStreamTurnBackendErrorFrame(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"partial"},"done":false}
{"error":"model crashed"}
`
	events := runStream(t, body)

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want 2", len(events), events)
	}
	last := events[len(events)-1]
	if last.Type != provider.EventError {
		t.Fatalf("last event type = %v, want error", last.Type)
	}
	apiErr := api.AsAPIError(last.Err)
	if apiErr.Type != api.ErrorTypeBackend {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeBackend)
	}
	if !strings.Contains(apiErr.Message, "model crashed") {
		t.Errorf("error message = %q, want it to carry the backend text", apiErr.Message)
	}
}

func TestStreamTurnMalformedFrameFailsStream(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"ok"},"done":false}
garbage
`
	events := runStream(t, body)

	if len(events) != 2 {
		t.Fatalf("got %d events (%v), want 2", len(events), events)
	}
	if events[1].Type != provider.EventError {
		t.Fatalf("event[1].Type = %v, want error", events[1].Type)
	}
	if api.AsAPIError(events[1].Err).Type != api.ErrorTypeBackend {
		t.Errorf("error type = %q, want backend error", api.AsAPIError(events[1].Err).Type)
	}
}

func TestStreamTurnEOFWithoutDoneStillFlushes(t *testing.T) {
	// A backend that drops the connection mid-turn still yields whatever
	// content was classified so far.
	body := `{"message":{"role":"assistant","content":"partial "},"done":false}
{"message":{"role":"assistant","content":"answer"},"done":false}
`
	events := runStream(t, body)

	var text strings.Builder
	for _, ev := range events {
		if ev.Type != provider.EventTextDelta {
			t.Errorf("unexpected event type %v", ev.Type)
		}
		text.WriteString(ev.Content)
	}
	if text.String() != "partial answer" {
		t.Errorf("text = %q, want %q", text.String(), "partial answer")
	}
}

func TestStreamTurnStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No reader on an unbuffered channel: only cancellation can unblock.
	ch := make(chan provider.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		streamTurn(ctx, strings.NewReader(`{"message":{"role":"assistant","content":"x"},"done":true}`+"\n"), ch)
	}()

	<-done
}
