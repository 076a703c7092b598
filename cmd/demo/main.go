// Command demo is a small terminal client for a running denker server.
// It sends one chat request and renders the event stream as it arrives:
// thinking dimmed, tool activity annotated, text as-is.
//
//	demo -url http://localhost:8080 "run a command that prints done"
//	demo -conversation conv_abc123 "and what about France?"
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/api"
)

const (
	ansiDim   = "\x1b[2m"
	ansiCyan  = "\x1b[36m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "denker server URL")
	model := flag.String("model", "", "model override")
	conversation := flag.String("conversation", "", "conversation id to continue")
	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		prompt = "Say hello in one short sentence."
	}

	if err := run(*serverURL, *model, *conversation, prompt); err != nil {
		fmt.Fprintf(os.Stderr, "%sdemo failed: %v%s\n", ansiRed, err, ansiReset)
		os.Exit(1)
	}
}

func run(serverURL, model, conversation, prompt string) error {
	req := api.ChatRequest{
		ConversationID: conversation,
		Message:        prompt,
		Model:          model,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return render(resp.Body)
}

// render consumes the SSE stream and writes a readable transcript to
// stdout. Thinking time is measured here; the server does not report it.
func render(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		thinkingSince time.Time
		inThinking    bool
		wroteText     bool
	)

	closeThinking := func() {
		if inThinking {
			fmt.Printf("%s\n%s(thought for %s)%s\n", ansiReset, ansiDim, time.Since(thinkingSince).Round(100*time.Millisecond), ansiReset)
			inThinking = false
		}
	}

	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}

		var event api.LoopEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("malformed event: %w", err)
		}

		switch event.Type {
		case api.EventConversation:
			fmt.Printf("%sconversation %s%s\n", ansiDim, event.ConversationID, ansiReset)

		case api.EventThinking:
			if !inThinking {
				thinkingSince = time.Now()
				inThinking = true
				fmt.Print(ansiDim)
			}
			fmt.Print(event.Content)

		case api.EventTextDelta:
			closeThinking()
			fmt.Print(event.Content)
			wroteText = true

		case api.EventToolCall:
			closeThinking()
			if wroteText {
				fmt.Println()
				wroteText = false
			}
			if event.Call != nil {
				fmt.Printf("%s[tool] %s %s%s\n", ansiCyan, event.Call.Name, event.Call.Arguments, ansiReset)
			}

		case api.EventToolResult:
			fmt.Printf("%s[result] %s%s\n", ansiCyan, truncate(event.Result, 200), ansiReset)

		case api.EventText:
			// The full text already arrived as deltas.

		case api.EventError:
			closeThinking()
			if wroteText {
				fmt.Println()
				wroteText = false
			}
			fmt.Printf("%s[error] %s%s\n", ansiRed, event.Content, ansiReset)

		case api.EventDone:
			closeThinking()
			if wroteText {
				fmt.Println()
			}
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream ended without a done event")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
