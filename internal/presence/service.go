// Package presence tracks player liveness with TTL keys in Redis. Liveness is
// a side channel for UI only; match state transitions never depend on it.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "presence:"

// Service records heartbeats and answers bulk online checks.
type Service struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewService creates a presence service. ttl bounds how long a player counts
// as online after their last heartbeat.
func NewService(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// Heartbeat marks the user online for the configured TTL.
func (s *Service) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Set(ctx, keyPrefix+userID.String(), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// Online reports which of the given users currently count as online.
func (s *Service) Online(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyPrefix + id.String()
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	for i, v := range values {
		result[userIDs[i]] = v != nil
	}
	return result, nil
}
