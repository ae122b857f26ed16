package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConfigStore is an in-memory ConfigStore for tests and development.
type MemoryConfigStore struct {
	mu  sync.RWMutex
	cfg *AppConfig
}

// NewMemoryConfigStore creates an empty in-memory configuration store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{}
}

func (s *MemoryConfigStore) Get(ctx context.Context) (*AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, ErrConfigNotFound
	}
	clone := *s.cfg
	return &clone, nil
}

func (s *MemoryConfigStore) Save(ctx context.Context, cfg *AppConfig) error {
	if cfg == nil {
		return ErrFailedToSaveConfig
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cfg
	clone.ID = DefaultConfigID
	clone.UpdatedAt = time.Now().UTC()
	s.cfg = &clone
	return nil
}

// MemoryUserFlagStore is an in-memory UserFlagStore for tests and development.
type MemoryUserFlagStore struct {
	mu    sync.RWMutex
	flags map[uuid.UUID]PremiumFlags
}

// NewMemoryUserFlagStore creates an empty in-memory flag store.
func NewMemoryUserFlagStore() *MemoryUserFlagStore {
	return &MemoryUserFlagStore{flags: make(map[uuid.UUID]PremiumFlags)}
}

func (s *MemoryUserFlagStore) Get(ctx context.Context, userID uuid.UUID) (PremiumFlags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flags, ok := s.flags[userID]
	if !ok {
		return PremiumFlags{}, ErrFlagsNotFound
	}
	return flags, nil
}

func (s *MemoryUserFlagStore) Set(ctx context.Context, userID uuid.UUID, flags PremiumFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[userID] = flags
	return nil
}
