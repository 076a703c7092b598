package ollama

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/denker-ai/denker/pkg/api"
)

func TestFrameReaderSequence(t *testing.T) {
	input := `{"message":{"role":"assistant","content":"hel"},"done":false}
{"message":{"role":"assistant","content":"lo"},"done":false}
{"message":{"role":"assistant","content":""},"done":true}
`
	r := newFrameReader(strings.NewReader(input))

	var contents []string
	var last *chatFrame
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		contents = append(contents, frame.Message.Content)
		last = frame
	}

	if got, want := strings.Join(contents, ""), "hello"; got != want {
		t.Errorf("concatenated content = %q, want %q", got, want)
	}
	if last == nil || !last.Done {
		t.Errorf("final frame Done = false, want true")
	}
}

func TestFrameReaderSplitReads(t *testing.T) {
	input := `{"message":{"role":"assistant","content":"héllo wörld"},"done":true}` + "\n"

	// One byte per read forces reassembly of both the line and the
	// multi-byte characters inside it.
	r := newFrameReader(iotest.OneByteReader(strings.NewReader(input)))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got, want := frame.Message.Content, "héllo wörld"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestFrameReaderTrailingLineWithoutNewline(t *testing.T) {
	input := `{"message":{"role":"assistant","content":"a"},"done":false}` + "\n" +
		`{"message":{"role":"assistant","content":"b"},"done":true}`

	r := newFrameReader(strings.NewReader(input))

	first, err := r.Next()
	if err != nil {
		t.Fatalf("first Next() error: %v", err)
	}
	if first.Message.Content != "a" {
		t.Errorf("first content = %q, want %q", first.Message.Content, "a")
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("second Next() error: %v", err)
	}
	if second.Message.Content != "b" {
		t.Errorf("second content = %q, want %q", second.Message.Content, "b")
	}
	if !second.Done {
		t.Errorf("second frame Done = false, want true")
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after last frame = %v, want io.EOF", err)
	}
}

func TestFrameReaderSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"message":{"role":"assistant","content":"x"},"done":true}` + "\n\n"

	r := newFrameReader(strings.NewReader(input))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if frame.Message.Content != "x" {
		t.Errorf("content = %q, want %q", frame.Message.Content, "x")
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}

func TestFrameReaderMalformedFrame(t *testing.T) {
	input := `{"message":{"role":"assistant","content":"ok"},"done":false}` + "\n" +
		`{not json` + "\n" +
		`{"message":{"role":"assistant","content":"never seen"},"done":true}` + "\n"

	r := newFrameReader(strings.NewReader(input))

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next() error: %v", err)
	}

	_, err := r.Next()
	if err == nil {
		t.Fatal("Next() on malformed frame succeeded, want error")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.Type != api.ErrorTypeBackend {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeBackend)
	}
	if !strings.Contains(apiErr.Message, "malformed frame") {
		t.Errorf("error message = %q, want it to mention the malformed frame", apiErr.Message)
	}
}

func TestFrameReaderReadError(t *testing.T) {
	r := newFrameReader(iotest.ErrReader(errors.New("connection reset")))

	_, err := r.Next()
	if err == nil {
		t.Fatal("Next() succeeded, want transport error")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.Type != api.ErrorTypeTransport {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeTransport)
	}
}

func TestFrameReaderToolCallFrame(t *testing.T) {
	input := `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Berlin"}}}]},"done":true}` + "\n"

	r := newFrameReader(strings.NewReader(input))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if len(frame.Message.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(frame.Message.ToolCalls))
	}
	call := frame.Message.ToolCalls[0]
	if call.Function.Name != "get_weather" {
		t.Errorf("tool name = %q, want %q", call.Function.Name, "get_weather")
	}
	if got := normalizeArguments(call.Function.Arguments); got != `{"city":"Berlin"}` {
		t.Errorf("arguments = %q, want %q", got, `{"city":"Berlin"}`)
	}
}
