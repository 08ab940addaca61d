package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

const unboundedCapacity = math.MaxInt32

// Store keeps conversations in process memory. Nothing survives a restart.
type Store struct {
	mu           sync.Mutex
	entries      *lru.Cache
	systemPrompt string
	log          zerolog.Logger
}

// NewStore creates an in-memory store. A capacity of 0 keeps every conversation
// until reset; a positive capacity evicts the least recently active user.
func NewStore(systemPrompt string, capacity int, log zerolog.Logger) (*Store, error) {
	if capacity <= 0 {
		capacity = unboundedCapacity
	}

	s := &Store{
		systemPrompt: systemPrompt,
		log:          log.With().Str("component", "memory-store").Logger(),
	}

	entries, err := lru.NewWithEvict(capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create conversation cache: %w", err)
	}
	s.entries = entries
	return s, nil
}

func (s *Store) Get(_ context.Context, userID string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.entries.Get(userID); ok {
		return value.(*conversation.Conversation).Clone(), nil
	}

	conv := conversation.New(userID, s.systemPrompt)
	s.entries.Add(userID, conv)
	return conv.Clone(), nil
}

func (s *Store) Reset(_ context.Context, userID string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := conversation.New(userID, s.systemPrompt)
	s.entries.Add(userID, conv)
	return conv.Clone(), nil
}

func (s *Store) Save(_ context.Context, conv *conversation.Conversation) error {
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.UserID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(conv.UserID, conv.Clone())
	return nil
}

// Len reports how many users currently have a conversation.
func (s *Store) Len() int {
	return s.entries.Len()
}

func (s *Store) onEvict(key, _ interface{}) {
	s.log.Debug().Interface("user_id", key).Msg("conversation evicted")
}

var _ conversation.Store = (*Store)(nil)
