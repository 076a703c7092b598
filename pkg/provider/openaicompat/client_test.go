package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/provider"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL, "", 0)
	t.Cleanup(func() { c.Close() })
	return c
}

func writeSSE(t *testing.T, w http.ResponseWriter, payloads ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("response writer does not support flushing")
	}
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
		flusher.Flush()
	}
}

func collectEvents(t *testing.T, ch <-chan provider.Event) []provider.Event {
	t.Helper()
	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8000/", "", 0)
	if c.baseURL != "http://localhost:8000" {
		t.Errorf("baseURL = %q, want trailing slash removed", c.baseURL)
	}
}

func TestStreamTextDeltas(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if !req.Stream {
			t.Error("request stream = false, want true")
		}
		if req.Model != "qwen3" {
			t.Errorf("request model = %q, want qwen3", req.Model)
		}

		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{
		Model:    "qwen3",
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var text strings.Builder
	for _, ev := range collectEvents(t, ch) {
		if ev.Type == provider.EventError {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		if ev.Type == provider.EventTextDelta {
			text.WriteString(ev.Content)
		}
	}
	if text.String() != "Hello" {
		t.Errorf("text = %q, want %q", text.String(), "Hello")
	}
}

func TestStreamSplitsInlineThinkTags(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"content":"<th"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"ink>plan</think>answer"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var visible, thinking strings.Builder
	for _, ev := range collectEvents(t, ch) {
		switch ev.Type {
		case provider.EventTextDelta:
			visible.WriteString(ev.Content)
		case provider.EventThinking:
			thinking.WriteString(ev.Content)
		case provider.EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if visible.String() != "answer" {
		t.Errorf("visible = %q, want %q", visible.String(), "answer")
	}
	if thinking.String() != "plan" {
		t.Errorf("thinking = %q, want %q", thinking.String(), "plan")
	}
}

func TestStreamReasoningContentChannel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"reasoning_content":"step one"}}]}`,
			`{"choices":[{"index":0,"delta":{"reasoning_content":", step two"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"result"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var visible, thinking strings.Builder
	for _, ev := range collectEvents(t, ch) {
		switch ev.Type {
		case provider.EventTextDelta:
			visible.WriteString(ev.Content)
		case provider.EventThinking:
			thinking.WriteString(ev.Content)
		case provider.EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if thinking.String() != "step one, step two" {
		t.Errorf("thinking = %q, want accumulated reasoning", thinking.String())
	}
	if visible.String() != "result" {
		t.Errorf("visible = %q, want %q", visible.String(), "result")
	}
}

func TestStreamBuffersToolCallArguments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	events := collectEvents(t, ch)
	if len(events) != 1 {
		t.Fatalf("got %d events (%v), want 1 tool_calls event", len(events), events)
	}
	ev := events[0]
	if ev.Type != provider.EventToolCalls {
		t.Fatalf("event type = %v, want tool_calls", ev.Type)
	}
	if len(ev.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(ev.Calls))
	}
	call := ev.Calls[0]
	if call.ID != "call_1" {
		t.Errorf("call id = %q, want %q", call.ID, "call_1")
	}
	if call.Name != "get_weather" {
		t.Errorf("call name = %q, want %q", call.Name, "get_weather")
	}
	if call.Arguments != `{"city":"Paris"}` {
		t.Errorf("call arguments = %q, want assembled JSON", call.Arguments)
	}
}

func TestStreamMultipleToolCallsKeepOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"first","arguments":"{}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"second","arguments":"{}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	events := collectEvents(t, ch)
	if len(events) != 1 || events[0].Type != provider.EventToolCalls {
		t.Fatalf("events = %v, want single tool_calls batch", events)
	}
	calls := events[0].Calls
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Name != "first" || calls[1].Name != "second" {
		t.Errorf("call order = [%s %s], want [first second]", calls[0].Name, calls[1].Name)
	}
}

func TestStreamSynthesizesMissingCallID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"lookup","arguments":"{}"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	events := collectEvents(t, ch)
	if len(events) != 1 || len(events[0].Calls) != 1 {
		t.Fatalf("events = %v, want one batch with one call", events)
	}
	id := events[0].Calls[0].ID
	if !strings.HasPrefix(id, "call_") {
		t.Errorf("call id = %q, want synthesized call_ prefix", id)
	}
	if len(id) != len("call_")+24 {
		t.Errorf("call id length = %d, want %d", len(id), len("call_")+24)
	}
}

func TestStreamEmptyArgumentsBecomeEmptyObject(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"ping"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
			`[DONE]`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	events := collectEvents(t, ch)
	if len(events) != 1 || len(events[0].Calls) != 1 {
		t.Fatalf("events = %v, want one batch with one call", events)
	}
	if got := events[0].Calls[0].Arguments; got != "{}" {
		t.Errorf("arguments = %q, want %q", got, "{}")
	}
}

func TestStreamMalformedChunkFailsStream(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"content":"ok"}}]}`,
			`{not json`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	events := collectEvents(t, ch)
	last := events[len(events)-1]
	if last.Type != provider.EventError {
		t.Fatalf("last event type = %v, want error", last.Type)
	}
	if apiErr := api.AsAPIError(last.Err); apiErr.Type != api.ErrorTypeBackend {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeBackend)
	}
}

func TestStreamHTTPErrorBeforeFirstEvent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"model exploded","type":"server_error"}}`)
	}))

	_, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err == nil {
		t.Fatal("Stream() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "backend request failed: 500") {
		t.Errorf("error = %q, want status code in message", err.Error())
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("error = %q, want body message included", err.Error())
	}
}

func TestStreamNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 0)
	defer c.Close()

	_, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err == nil {
		t.Fatal("Stream() succeeded, want error")
	}
	if apiErr := api.AsAPIError(err); apiErr.Type != api.ErrorTypeTransport {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeTransport)
	}
}

func TestStreamEOFWithoutDoneFlushes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stream ends abruptly after a content chunk: no finish_reason,
		// no [DONE].
		writeSSE(t, w,
			`{"choices":[{"index":0,"delta":{"content":"partial"}}]}`,
		)
	}))

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var text strings.Builder
	for _, ev := range collectEvents(t, ch) {
		if ev.Type == provider.EventTextDelta {
			text.WriteString(ev.Content)
		}
	}
	if text.String() != "partial" {
		t.Errorf("text = %q, want %q", text.String(), "partial")
	}
}

func TestStreamSendsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeSSE(t, w, `[DONE]`)
	}))
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL, "sk-secret", 0)
	defer c.Close()

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	collectEvents(t, ch)

	if gotAuth != "Bearer sk-secret" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
}

func TestStreamAppliesModelMapper(t *testing.T) {
	var gotModel string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotModel = req.Model
		writeSSE(t, w, `[DONE]`)
	}))
	c.ModelMapper = func(model string) string { return "mapped/" + model }

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "qwen3"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	collectEvents(t, ch)

	if gotModel != "mapped/qwen3" {
		t.Errorf("backend saw model %q, want %q", gotModel, "mapped/qwen3")
	}
}

func TestTranslateRequestWireShape(t *testing.T) {
	req := &provider.Request{
		Model: "qwen3",
		Messages: []api.Message{
			{Role: api.RoleSystem, Content: "be brief"},
			{Role: api.RoleUser, Content: "weather?"},
			{Role: api.RoleAssistant, ToolCalls: []api.ToolCall{
				{ID: "call_9", Name: "get_weather", Arguments: `{"city":"Paris"}`},
			}},
			{Role: api.RoleTool, Content: "sunny", ToolCallID: "call_9"},
		},
		Tools: []api.ToolDefinition{
			{Name: "get_weather", Description: "look up weather", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	}

	out := TranslateRequest(req)

	if !out.Stream {
		t.Error("Stream = false, want true")
	}
	if len(out.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(out.Messages))
	}
	asst := out.Messages[2]
	if len(asst.ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d, want 1", len(asst.ToolCalls))
	}
	if asst.ToolCalls[0].Type != "function" {
		t.Errorf("tool call type = %q, want %q", asst.ToolCalls[0].Type, "function")
	}
	if asst.ToolCalls[0].Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("tool call arguments = %q, want original JSON", asst.ToolCalls[0].Function.Arguments)
	}
	toolMsg := out.Messages[3]
	if toolMsg.ToolCallID != "call_9" {
		t.Errorf("tool message tool_call_id = %q, want %q", toolMsg.ToolCallID, "call_9")
	}
	if len(out.Tools) != 1 || out.Tools[0].Type != "function" {
		t.Fatalf("tools = %v, want one function tool", out.Tools)
	}
	if out.Tools[0].Function.Name != "get_weather" {
		t.Errorf("tool name = %q, want %q", out.Tools[0].Function.Name, "get_weather")
	}
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q, want /v1/models", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"qwen3","object":"model","created":1727000000,"owned_by":"org"},{"id":"llama3","object":"model"}]}`)
	}))

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "qwen3" {
		t.Errorf("models[0].Name = %q, want %q", models[0].Name, "qwen3")
	}
	if models[0].ModifiedAt.IsZero() {
		t.Error("models[0].ModifiedAt is zero, want created timestamp")
	}
	if models[1].Name != "llama3" {
		t.Errorf("models[1].Name = %q, want %q", models[1].Name, "llama3")
	}
}

func TestListModelsHTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ListModels(context.Background())
	if err == nil {
		t.Fatal("ListModels() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "backend request failed: 502") {
		t.Errorf("error = %q, want status in message", err.Error())
	}
}

func TestStreamRecordsUsageTrailer(t *testing.T) {
	// The usage chunk arrives after finish_reason and before [DONE]; the
	// parser keeps reading past the terminal event to catch it.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			`{"model":"usage-probe","choices":[{"index":0,"delta":{"content":"hi"}}]}`,
			`{"model":"usage-probe","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`{"model":"usage-probe","choices":[],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`,
			`[DONE]`,
		)
	}))

	input := observability.ProviderTokensTotal.WithLabelValues("openai-compat", "usage-probe", "input")
	output := observability.ProviderTokensTotal.WithLabelValues("openai-compat", "usage-probe", "output")
	inBefore := counterValue(t, input)
	outBefore := counterValue(t, output)

	ch, err := c.Stream(context.Background(), &provider.Request{Model: "usage-probe"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	for _, ev := range collectEvents(t, ch) {
		if ev.Type == provider.EventError {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	if got := counterValue(t, input) - inBefore; got != 7 {
		t.Errorf("input tokens recorded = %v, want 7", got)
	}
	if got := counterValue(t, output) - outBefore; got != 3 {
		t.Errorf("output tokens recorded = %v, want 3", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStreamContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"choices":[{"index":0,"delta":{"content":"first"}}]}`)
		<-release
	}))
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, &provider.Request{Model: "m"})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	// Read the first delta, then cancel; the channel must close.
	<-ch
	cancel()

	for range ch {
	}
}
