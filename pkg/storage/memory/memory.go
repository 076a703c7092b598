// Package memory provides an in-memory implementation of
// transport.ConversationStore for testing and throwaway sessions.
// Conversations are lost when the process restarts. Optional eviction
// limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/storage"
	"github.com/denker-ai/denker/pkg/transport"
)

// entry holds a stored conversation and its message history.
type entry struct {
	conv     *api.Conversation
	messages []api.StoredMessage
	lruElem  *list.Element // position in recency list
}

// Store is an in-memory ConversationStore with optional eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently touched, back = oldest
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently touched conversation
// is evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// CreateConversation persists a conversation in memory.
func (s *Store) CreateConversation(_ context.Context, conv *api.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[conv.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	c := *conv
	elem := s.lruList.PushFront(conv.ID)
	s.entries[conv.ID] = &entry{
		conv:    &c,
		lruElem: elem,
	}
	return nil
}

// GetConversation retrieves a conversation by ID. The returned value is a
// copy; later touches do not mutate it.
func (s *Store) GetConversation(_ context.Context, id string) (*api.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *e.conv
	return &c, nil
}

// ListConversations returns a paginated list ordered by update time.
// Default order is desc (most recently updated first).
func (s *Store) ListConversations(_ context.Context, opts transport.ListOptions) (*transport.ConversationList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*api.Conversation, 0, len(s.entries))
	for _, e := range s.entries {
		c := *e.conv
		matches = append(matches, &c)
	}

	asc := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		if asc {
			if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
				return matches[i].UpdatedAt.Before(matches[j].UpdatedAt)
			}
			return matches[i].ID < matches[j].ID
		}
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	if opts.After != "" {
		idx := -1
		for i, c := range matches {
			if c.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &transport.ConversationList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Conversation{}
	}
	return result, nil
}

// TouchConversation bumps updated_at and marks the conversation as most
// recently used.
func (s *Store) TouchConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.conv.UpdatedAt = time.Now().UTC()
	s.lruList.MoveToFront(e.lruElem)
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// SaveMessage appends a message, assigning its ID, position, and timestamp.
func (s *Store) SaveMessage(_ context.Context, conversationID string, msg api.Message) (*api.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	stored := api.StoredMessage{
		ID:             api.NewMessageID(),
		ConversationID: conversationID,
		Position:       len(e.messages),
		CreatedAt:      time.Now().UTC(),
		Message:        msg,
	}
	e.messages = append(e.messages, stored)
	return &stored, nil
}

// ListMessages returns the conversation's messages in insertion order.
func (s *Store) ListMessages(_ context.Context, conversationID string) ([]api.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]api.StoredMessage, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently touched conversation.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
