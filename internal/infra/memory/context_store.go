package memory

import (
	"context"
	"sync"

	"quizzer-session/internal/domain"
)

// ContextStore keeps session identities in-process. It is the only durable
// memory of "who am I in this session" for a client; a missing entry means
// the user must rejoin with a fresh code.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]domain.SessionContext
}

func NewContextStore() *ContextStore {
	return &ContextStore{contexts: make(map[string]domain.SessionContext)}
}

func (s *ContextStore) Save(_ context.Context, sctx domain.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[sctx.UserID] = sctx
	return nil
}

func (s *ContextStore) Load(_ context.Context, userID string) (domain.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sctx, ok := s.contexts[userID]
	if !ok {
		return domain.SessionContext{}, domain.ErrIdentityMissing
	}
	return sctx, nil
}

func (s *ContextStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
	return nil
}
