// Command mock-ollama runs a deterministic Ollama-compatible backend for
// development and conformance testing. It streams predictable NDJSON
// responses selected by keywords in the last user message:
//
//	"count from 1 to 5"  - plain text, one number per frame
//	"think"              - reasoning inside <think> tags split across frames
//	"run a command"      - one exec tool call, then a closing answer
//	"unknown tool"       - a call to a tool no registry has
//	"backend error"      - HTTP 500 with an Ollama error body
//	"never finish"       - a tool call on every turn, forever
//
// Anything else streams a short greeting. Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", handleChat)
	mux.HandleFunc("GET /api/tags", handleTags)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock ollama starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock ollama failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock ollama shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Wire types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []any         `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type chatFrame struct {
	Model           string       `json:"model"`
	CreatedAt       string       `json:"created_at"`
	Message         frameMessage `json:"message"`
	Done            bool         `json:"done"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
}

type frameMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// --- Handlers ---

func handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	prompt := strings.ToLower(lastUserMessage(&req))

	if strings.Contains(prompt, "backend error") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model exploded"}`))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	s := &streamer{w: w, flusher: flusher, model: model}

	switch {
	case strings.Contains(prompt, "never finish"):
		// A tool call on every turn. The caller's iteration cap is the
		// only way out.
		s.toolCallTurn("exec", `{"command":"echo ok"}`)

	case strings.Contains(prompt, "unknown tool"):
		if hasToolResult(&req) {
			s.textTurn("I could not use that tool", ", so here is a direct answer.")
		} else {
			s.toolCallTurn("launch_rocket", `{"target":"moon"}`)
		}

	case strings.Contains(prompt, "run a command"):
		if hasToolResult(&req) {
			s.textTurn("The command finished: ", lastToolResult(&req))
		} else {
			s.toolCallTurn("exec", `{"command":"echo done"}`)
		}

	case strings.Contains(prompt, "think"):
		// The opening and closing tags straddle frame boundaries to
		// exercise incremental tag handling in consumers.
		s.textTurn("<thi", "nk>pondering the question</t", "hink>the answer is 42")

	case strings.Contains(prompt, "count from 1 to 5"):
		s.textTurn("1", ", 2", ", 3", ", 4", ", 5")

	default:
		s.textTurn("Hello", ", nice", " day!")
	}
}

func handleTags(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"models": []map[string]any{
			{"name": "mock-model", "size": 4661224676, "modified_at": time.Now().UTC().Format(time.RFC3339)},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Streaming ---

// streamer writes one NDJSON response turn frame by frame.
type streamer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	model   string
}

// textTurn streams each piece as its own content frame, then the final
// frame with token counts.
func (s *streamer) textTurn(pieces ...string) {
	for _, piece := range pieces {
		s.writeFrame(chatFrame{
			Model:     s.model,
			CreatedAt: timestamp(),
			Message:   frameMessage{Role: "assistant", Content: piece},
		})
	}
	s.finish(len(pieces))
}

// toolCallTurn streams a single tool call followed by the final frame.
func (s *streamer) toolCallTurn(name, arguments string) {
	s.writeFrame(chatFrame{
		Model:     s.model,
		CreatedAt: timestamp(),
		Message: frameMessage{
			Role: "assistant",
			ToolCalls: []toolCall{
				{Function: funcCall{Name: name, Arguments: json.RawMessage(arguments)}},
			},
		},
	})
	s.finish(1)
}

func (s *streamer) finish(evalCount int) {
	s.writeFrame(chatFrame{
		Model:           s.model,
		CreatedAt:       timestamp(),
		Message:         frameMessage{Role: "assistant"},
		Done:            true,
		PromptEvalCount: 10,
		EvalCount:       evalCount,
	})
}

func (s *streamer) writeFrame(frame chatFrame) {
	data, _ := json.Marshal(frame)
	s.w.Write(data)
	s.w.Write([]byte("\n"))
	s.flusher.Flush()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// --- Helpers ---

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

// hasToolResult reports whether the conversation already carries a tool
// result, meaning this request is the follow-up turn after dispatch.
func hasToolResult(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			return true
		}
	}
	return false
}

func lastToolResult(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "tool" {
			return req.Messages[i].Content
		}
	}
	return ""
}
