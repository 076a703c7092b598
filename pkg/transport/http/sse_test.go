package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/denker-ai/denker/pkg/api"
)

func TestSSEWriterFrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	if err := w.WriteEvent(context.Background(), api.TextDeltaEvent("hello")); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	want := `data: {"type":"text_delta","content":"hello"}` + "\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestSSEWriterNoEventFieldNoSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	ctx := context.Background()
	w.WriteEvent(ctx, api.TextDeltaEvent("hi"))
	w.WriteEvent(ctx, api.TextEvent("hi"))
	w.WriteEvent(ctx, api.DoneEvent())

	body := rec.Body.String()
	if strings.Contains(body, "event:") {
		t.Errorf("stream must not contain an event field:\n%s", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Errorf("stream must not contain a [DONE] sentinel:\n%s", body)
	}
	if !strings.HasSuffix(body, `data: {"type":"done"}`+"\n\n") {
		t.Errorf("stream must end with the done frame:\n%s", body)
	}
}

func TestSSEWriterHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	w.WriteEvent(context.Background(), api.ThinkingEvent("..."))

	headers := rec.Header()
	if got := headers.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if got := headers.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
	if got := headers.Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", got)
	}
}

func TestSSEWriterRefusesWritesAfterDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	ctx := context.Background()
	if err := w.WriteEvent(ctx, api.DoneEvent()); err != nil {
		t.Fatalf("done write failed: %v", err)
	}
	if err := w.WriteEvent(ctx, api.TextDeltaEvent("late")); err == nil {
		t.Error("expected error writing after done")
	}
	if strings.Contains(rec.Body.String(), "late") {
		t.Error("late event must not reach the wire")
	}
}

func TestSSEWriterConversationCallback(t *testing.T) {
	rec := httptest.NewRecorder()

	var got []string
	w := newSSEEventWriter(rec, func(id string) { got = append(got, id) })

	ctx := context.Background()
	w.WriteEvent(ctx, api.ConversationEvent("conv_abc123abc123abc123abc123"))
	w.WriteEvent(ctx, api.ConversationEvent("conv_xyz789xyz789xyz789xyz789"))

	if len(got) != 1 || got[0] != "conv_abc123abc123abc123abc123" {
		t.Errorf("callback calls = %v, want exactly the first conversation id", got)
	}

	// The event itself still goes out on the wire.
	if !strings.Contains(rec.Body.String(), `"conversation_id":"conv_abc123abc123abc123abc123"`) {
		t.Error("conversation event missing from stream")
	}
}

func TestSSEWriterStateTransitions(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	if w.hasStartedStreaming() {
		t.Error("fresh writer must report not started")
	}

	ctx := context.Background()
	w.WriteEvent(ctx, api.TextDeltaEvent("a"))
	if !w.hasStartedStreaming() {
		t.Error("writer must report started after first event")
	}
	if w.isCompleted() {
		t.Error("writer must not report completed before done")
	}

	w.WriteEvent(ctx, api.DoneEvent())
	if !w.isCompleted() {
		t.Error("writer must report completed after done")
	}
}

func TestSSEWriterToolCallFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	call := api.ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`}
	if err := w.WriteEvent(context.Background(), api.ToolCallEvent(call)); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{`"type":"tool_call"`, `"id":"call_1"`, `"name":"get_weather"`} {
		if !strings.Contains(body, want) {
			t.Errorf("frame missing %s:\n%s", want, body)
		}
	}
}
