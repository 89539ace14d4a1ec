package convstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/model"
)

// FallbackStore wraps a durable store and degrades to an in-memory store for
// the remainder of the process lifetime when the durable backend fails. The
// engine keeps answering turns; durability is lost, not availability.
type FallbackStore struct {
	primary Store
	memory  *MemoryStore

	mu       sync.Mutex
	degraded bool
}

// NewFallback wraps primary with in-memory degradation.
func NewFallback(primary Store) *FallbackStore {
	return &FallbackStore{primary: primary, memory: NewMemory()}
}

// Degraded reports whether the store has switched to memory.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		zap.L().Error("convstore: durable backend failed, continuing in memory",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

func (s *FallbackStore) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if s.Degraded() {
		return s.memory.Load(ctx, conversationID)
	}
	state, err := s.primary.Load(ctx, conversationID)
	if err != nil {
		s.degrade("load", err)
		return s.memory.Load(ctx, conversationID)
	}
	return state, nil
}

func (s *FallbackStore) Save(ctx context.Context, state *model.ConversationState) error {
	if s.Degraded() {
		return s.memory.Save(ctx, state)
	}
	if err := s.primary.Save(ctx, state); err != nil {
		s.degrade("save", err)
		return s.memory.Save(ctx, state)
	}
	return nil
}

func (s *FallbackStore) List(ctx context.Context) ([]model.ConversationState, error) {
	if s.Degraded() {
		return s.memory.List(ctx)
	}
	out, err := s.primary.List(ctx)
	if err != nil {
		s.degrade("list", err)
		return s.memory.List(ctx)
	}
	return out, nil
}

func (s *FallbackStore) Migrate(ctx context.Context) error {
	if s.Degraded() {
		return nil
	}
	if err := s.primary.Migrate(ctx); err != nil {
		s.degrade("migrate", err)
	}
	return nil
}

func (s *FallbackStore) Close() error {
	return s.primary.Close()
}
