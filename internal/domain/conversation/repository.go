package conversation

import "context"

// Store owns per-user conversation state.
type Store interface {
	// Get returns a copy of the user's conversation, creating it with the system prompt if absent.
	Get(ctx context.Context, userID string) (*Conversation, error)
	// Reset discards the history and reseeds the system message.
	Reset(ctx context.Context, userID string) (*Conversation, error)
	// Save replaces the stored history.
	Save(ctx context.Context, conv *Conversation) error
}

// Locker provides mutual exclusion for read-modify-write cycles on one user's conversation.
type Locker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}
