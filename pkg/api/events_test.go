package api

import (
	"encoding/json"
	"testing"
)

func TestLoopEventJSONShape(t *testing.T) {
	tests := []struct {
		name  string
		event LoopEvent
		want  string
	}{
		{
			name:  "thinking",
			event: ThinkingEvent("plan"),
			want:  `{"type":"thinking","content":"plan"}`,
		},
		{
			name:  "text_delta",
			event: TextDeltaEvent("Hel"),
			want:  `{"type":"text_delta","content":"Hel"}`,
		},
		{
			name:  "tool_call",
			event: ToolCallEvent(ToolCall{ID: "call_1", Name: "bash", Arguments: `{"cmd":"ls"}`}),
			want:  `{"type":"tool_call","call":{"id":"call_1","name":"bash","arguments":"{\"cmd\":\"ls\"}"}}`,
		},
		{
			name:  "tool_result",
			event: ToolResultEvent("call_1", "file1"),
			want:  `{"type":"tool_result","call_id":"call_1","result":"file1"}`,
		},
		{
			name:  "conversation",
			event: ConversationEvent("conv_abc"),
			want:  `{"type":"conversation","conversation_id":"conv_abc"}`,
		},
		{
			name:  "error",
			event: ErrorEvent("Max iterations reached"),
			want:  `{"type":"error","content":"Max iterations reached"}`,
		},
		{
			name:  "done",
			event: DoneEvent(),
			want:  `{"type":"done"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("JSON = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestLoopEventIsTerminal(t *testing.T) {
	if !DoneEvent().IsTerminal() {
		t.Error("done event should be terminal")
	}
	if ErrorEvent("boom").IsTerminal() {
		t.Error("error event should not be terminal; done follows it")
	}
	if TextDeltaEvent("x").IsTerminal() {
		t.Error("text_delta event should not be terminal")
	}
}
