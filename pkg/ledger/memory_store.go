package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

type subKey struct {
	userID   uuid.UUID
	platform billing.Platform
}

// MemoryStore implements Store in memory for testing and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[subKey]*Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[subKey]*Subscription)}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID, platform billing.Platform) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[subKey{userID, platform}]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *MemoryStore) FindActive(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, sub := range s.subs {
		if key.userID == userID && sub.Status == billing.StatusActive {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, ErrNoActiveSubscription
}

func (s *MemoryStore) Save(_ context.Context, sub *Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subKey{sub.UserID, sub.Platform}
	if existing, ok := s.subs[key]; ok && sub.LastEventAt.Before(existing.LastEventAt) {
		return false, nil
	}

	clone := *sub
	s.subs[key] = &clone
	return true, nil
}

// MemoryPaymentStore implements PaymentStore in memory.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments []*Payment
}

// NewMemoryPaymentStore creates an empty in-memory payment store.
func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{}
}

func (s *MemoryPaymentStore) Create(_ context.Context, payment *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *payment
	s.payments = append(s.payments, &clone)
	return nil
}

func (s *MemoryPaymentStore) ListBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Payment
	for _, p := range s.payments {
		if p.SubscriptionID == subscriptionID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}
