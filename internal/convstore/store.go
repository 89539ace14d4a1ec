// Package convstore persists per-conversation slot-filling state behind a
// keyed store interface, with SQLite and Postgres backends, an in-memory
// implementation, and a fallback wrapper that degrades to memory when the
// durable backend fails.
package convstore

import (
	"context"

	"github.com/sells-group/prequal-cli/internal/model"
)

// Store is the conversation persistence interface. A conversation is loaded
// at the start of every turn and saved at the end; a single conversation is
// never processed by two turns concurrently, so no locking is required of
// implementations beyond ordinary connection safety.
type Store interface {
	// Load returns the state for a conversation, or (nil, nil) when the
	// conversation has not been seen before.
	Load(ctx context.Context, conversationID string) (*model.ConversationState, error)
	Save(ctx context.Context, state *model.ConversationState) error
	// List returns all conversations, most recently updated first.
	List(ctx context.Context) ([]model.ConversationState, error)

	Migrate(ctx context.Context) error
	Close() error
}
