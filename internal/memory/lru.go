package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore is an in-process store bounded by both size and age.
type LRUStore struct {
	cache *expirable.LRU[string, string]
}

// NewLRUStore keeps at most size sessions, each for at most ttl since its
// last write.
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, sessionID string) (string, error) {
	category, _ := s.cache.Get(sessionID)
	return category, nil
}

func (s *LRUStore) Set(_ context.Context, sessionID, category string) error {
	s.cache.Add(sessionID, category)
	return nil
}

func (s *LRUStore) Clear(_ context.Context, sessionID string) error {
	s.cache.Remove(sessionID)
	return nil
}

// Len reports the number of live sessions.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

var _ Store = (*LRUStore)(nil)
