package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

// Config controls the redis-backed store.
type Config struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

// Store shares conversations between replicas. Keys expire after TTL of inactivity
// (0 disables expiry); there is no durability guarantee beyond what redis offers.
type Store struct {
	client       redis.UniversalClient
	keyPrefix    string
	ttl          time.Duration
	systemPrompt string
	log          zerolog.Logger
}

// Connect parses the URL and pings the server before returning a client.
func Connect(ctx context.Context, rawURL string) (redis.UniversalClient, error) {
	if rawURL == "" {
		return nil, errors.New("redis URL must be provided")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewStore(client redis.UniversalClient, cfg Config, systemPrompt string, log zerolog.Logger) *Store {
	return &Store{
		client:       client,
		keyPrefix:    cfg.KeyPrefix,
		ttl:          cfg.TTL,
		systemPrompt: systemPrompt,
		log:          log.With().Str("component", "redis-store").Logger(),
	}
}

func (s *Store) Get(ctx context.Context, userID string) (*conversation.Conversation, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		conv := conversation.New(userID, s.systemPrompt)
		if err := s.write(ctx, conv); err != nil {
			return nil, err
		}
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", userID, err)
	}

	conv, err := decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable conversation")
		return s.Reset(ctx, userID)
	}
	conv.UserID = userID
	return conv, nil
}

func (s *Store) Reset(ctx context.Context, userID string) (*conversation.Conversation, error) {
	conv := conversation.New(userID, s.systemPrompt)
	if err := s.write(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) error {
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.UserID, err)
	}
	return s.write(ctx, conv)
}

func (s *Store) write(ctx context.Context, conv *conversation.Conversation) error {
	data, err := encode(conv)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(conv.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write conversation %s: %w", conv.UserID, err)
	}
	return nil
}

func (s *Store) key(userID string) string {
	return conversationKey(s.keyPrefix, userID)
}

func conversationKey(prefix, userID string) string {
	return prefix + "conversation:" + userID
}

func lockKey(prefix, userID string) string {
	return prefix + "lock:" + userID
}

func encode(conv *conversation.Conversation) ([]byte, error) {
	data, err := json.Marshal(conv.Messages)
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*conversation.Conversation, error) {
	var messages []conversation.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	conv := &conversation.Conversation{Messages: messages}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

var _ conversation.Store = (*Store)(nil)
