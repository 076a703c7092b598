package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks running streams by conversation ID so that an
// explicit DELETE on a conversation can abort its active stream before
// the rows go away.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]context.CancelFunc),
	}
}

// Register adds an in-flight stream to the registry. The cancel function
// is called if the conversation is deleted while the stream runs.
func (r *InFlightRegistry) Register(conversationID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conversationID] = cancel
}

// Cancel aborts an in-flight stream by calling its cancel function.
// Returns true if a stream was found and cancelled, false if the ID was
// not registered (already completed or never existed).
func (r *InFlightRegistry) Cancel(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.entries[conversationID]
	if !ok {
		return false
	}
	cancel()
	delete(r.entries, conversationID)
	return true
}

// Remove removes a stream from the registry without cancelling it.
// Called when a stream completes normally.
func (r *InFlightRegistry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, conversationID)
}
