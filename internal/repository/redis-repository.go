// internal/repository/redis-repository.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"simbot/internal/domain"

	"github.com/redis/go-redis/v9"
)

const stateTTL = 24 * time.Hour

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, ttl: stateTTL}
}

func stateKey(chatID int64) string {
	return fmt.Sprintf("conversation_state:%d", chatID)
}

// Save stores the conversation state; idle chats expire after 24 hours
func (r *RedisRepository) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	if err := r.client.Set(ctx, stateKey(state.ChatID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation state to redis: %w", err)
	}

	return nil
}

// Load returns nil, nil when the chat has no stored state
func (r *RedisRepository) Load(ctx context.Context, chatID int64) (*domain.ConversationState, error) {
	data, err := r.client.Get(ctx, stateKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation state from redis: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}

	return &state, nil
}

func (r *RedisRepository) Delete(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, stateKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation state from redis: %w", err)
	}
	return nil
}

// Health check method
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
