package license

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for testing and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[string]*License
}

// NewMemoryStore creates an empty in-memory license store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{licenses: make(map[string]*License)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lic, ok := s.licenses[key]
	if !ok {
		return nil, ErrInvalidLicense
	}
	clone := *lic
	return &clone, nil
}

func (s *MemoryStore) Create(_ context.Context, lic *License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.licenses[lic.Key]; exists {
		return fmt.Errorf("%w: key already exists", ErrFailedToSaveLicense)
	}
	clone := *lic
	s.licenses[lic.Key] = &clone
	return nil
}

func (s *MemoryStore) Bind(_ context.Context, key string, userID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lic, ok := s.licenses[key]
	if !ok {
		return ErrInvalidLicense
	}
	if lic.UserID != nil {
		if *lic.UserID == userID {
			return nil // idempotent re-activation
		}
		return ErrAlreadyActivated
	}

	lic.UserID = &userID
	lic.ActivatedAt = &now
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, key string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lic, ok := s.licenses[key]
	if !ok {
		return ErrInvalidLicense
	}
	lic.LastCheckedAt = &now
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*License
	for _, lic := range s.licenses {
		if lic.UserID != nil && *lic.UserID == userID {
			clone := *lic
			result = append(result, &clone)
		}
	}
	return result, nil
}
