package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizzer-session/internal/domain"
)

// ContextStore persists session identities in Redis with a TTL, so a client
// that restarts mid-session can recover who it was. An expired or missing
// key is the unrecoverable-without-rejoin condition.
type ContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewContextStore(client *redis.Client, ttl time.Duration) *ContextStore {
	return &ContextStore{client: client, ttl: ttl}
}

func (s *ContextStore) Save(ctx context.Context, sctx domain.SessionContext) error {
	data, err := json.Marshal(sctx)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}
	return s.client.Set(ctx, s.key(sctx.UserID), data, s.ttl).Err()
}

func (s *ContextStore) Load(ctx context.Context, userID string) (domain.SessionContext, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionContext{}, domain.ErrIdentityMissing
	}
	if err != nil {
		return domain.SessionContext{}, err
	}
	var sctx domain.SessionContext
	if err := json.Unmarshal(data, &sctx); err != nil {
		return domain.SessionContext{}, fmt.Errorf("unmarshal session context: %w", err)
	}
	return sctx, nil
}

func (s *ContextStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *ContextStore) key(userID string) string {
	return "quiz:ctx:" + userID
}
