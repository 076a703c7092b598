package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/transport"
)

// writerState tracks the state of an SSE event writer.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // WriteEvent has been called at least once
	writerCompleted                    // terminal event sent
)

// sseEventWriter implements transport.EventWriter over HTTP Server-Sent
// Events. Each event is one frame:
//
//	data: {compact JSON}\n
//	\n
//
// There is no "event:" field and no end-of-stream sentinel; the done event
// is the last frame, after which the writer refuses further writes and the
// handler closes the connection.
type sseEventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState

	// onConversation is called when a conversation event passes through,
	// giving the adapter the ID for in-flight registration.
	onConversation func(id string)
}

var _ transport.EventWriter = (*sseEventWriter)(nil)

// newSSEEventWriter creates an EventWriter wrapping an http.ResponseWriter.
// The onConversation callback receives the conversation ID from the first
// conversation event (may be nil if not needed).
func newSSEEventWriter(w http.ResponseWriter, onConversation func(id string)) *sseEventWriter {
	return &sseEventWriter{
		w:              w,
		rc:             http.NewResponseController(w),
		onConversation: onConversation,
	}
}

// WriteEvent sends one SSE frame and flushes it. The first write sets the
// stream headers. Writes after the done event fail.
func (s *sseEventWriter) WriteEvent(ctx context.Context, event api.LoopEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write event: stream is completed")
	}

	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	if event.Type == api.EventConversation && s.onConversation != nil {
		s.onConversation(event.ConversationID)
		s.onConversation = nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if event.IsTerminal() {
		s.state = writerCompleted
	}

	return nil
}

// Flush pushes buffered data to the client.
func (s *sseEventWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming reports whether at least one event has been written.
func (s *sseEventWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

// isCompleted reports whether the terminal event has been written.
func (s *sseEventWriter) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerCompleted
}
