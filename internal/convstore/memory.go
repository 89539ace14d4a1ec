package convstore

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/prequal-cli/internal/model"
)

// MemoryStore keeps conversation state in process memory. It backs the chat
// REPL when no durable store is configured and serves as the degraded target
// for FallbackStore.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]model.ConversationState
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{states: make(map[string]model.ConversationState)}
}

func (s *MemoryStore) Load(_ context.Context, conversationID string) (*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (s *MemoryStore) Save(_ context.Context, state *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = *state
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ConversationState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
