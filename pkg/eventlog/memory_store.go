package eventlog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for testing and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*Event
	order  []uuid.UUID // insertion order, preserves FIFO for the drain pass
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[uuid.UUID]*Event),
	}
}

func (s *MemoryStore) Create(_ context.Context, event *Event) error {
	if event == nil {
		return ErrEventNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return fmt.Errorf("%w: event %s already exists", ErrFailedToCreateEvent, event.ID)
	}

	s.events[event.ID] = cloneEvent(event)
	s.order = append(s.order, event.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return cloneEvent(event), nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id uuid.UUID, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if event.Processed {
		return ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	event.Processed = true
	event.ProcessedAt = &now
	action := outcome.Action
	event.ResultingAction = &action
	event.RelatedPaymentID = outcome.PaymentID
	if outcome.UserID != nil {
		event.RelatedUserID = outcome.UserID
	}
	event.Error = nil
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if event.Processed {
		return nil, ErrAlreadyProcessed
	}

	event.RetryCount++
	event.Error = &errMsg
	if event.RetryCount >= event.MaxRetries {
		now := time.Now().UTC()
		event.Processed = true
		event.ProcessedAt = &now
	}
	return cloneEvent(event), nil
}

func (s *MemoryStore) MarkTerminal(_ context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if event.Processed {
		return ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	event.RetryCount = event.MaxRetries
	event.Error = &errMsg
	event.Processed = true
	event.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) ListUnprocessed(_ context.Context, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Event, 0, limit)
	for _, id := range s.order {
		if len(result) >= limit {
			break
		}
		event := s.events[id]
		if event.Processed || event.RetryCount >= event.MaxRetries {
			continue
		}
		result = append(result, cloneEvent(event))
	}
	return result, nil
}

func cloneEvent(event *Event) *Event {
	clone := *event
	clone.Payload = slices.Clone(event.Payload)
	clone.Headers = maps.Clone(event.Headers)
	return &clone
}
