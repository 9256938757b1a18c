package usersettings

import (
	"context"
	"sync"
)

// InMemoryStore holds settings in process memory. Default for tests and
// single-node deployments; use RedisStore to survive restarts.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings Settings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Get(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *InMemoryStore) SetDismissedStrippenError(ctx context.Context, dismissed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.HasDismissedStrippenError = dismissed
	return nil
}

func (s *InMemoryStore) SetDismissedPolicyChangeBanner(ctx context.Context, dismissed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.HasDismissedPolicyChangeBanner = dismissed
	return nil
}

func (s *InMemoryStore) SetDismissedBlockedEventsBanner(ctx context.Context, dismissed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.HasDismissedBlockedEventsBanner = dismissed
	return nil
}

func (s *InMemoryStore) IncrementStrippenErrorCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.StrippenErrorOccurrenceCount++
	return s.settings.StrippenErrorOccurrenceCount, nil
}

func (s *InMemoryStore) ResetStrippenErrorCount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.StrippenErrorOccurrenceCount = 0
	return nil
}

func (s *InMemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = Settings{}
	return nil
}

var _ Store = (*InMemoryStore)(nil)
