// Package memory implements the order repository in memory with the same
// conditional-transition contract as the Postgres store. It backs tests and
// has no outbox; events passed to Transition are recorded for inspection.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/order/domain"
)

type RecordedEvent struct {
	OrderID uuid.UUID
	Type    string
	Payload []byte
}

type Store struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
	Events []RecordedEvent
}

func NewStore() *Store {
	return &Store{orders: make(map[uuid.UUID]domain.Order)}
}

func (s *Store) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

// All returns a snapshot of every stored order, for test assertions.
func (s *Store) All() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) Transition(_ context.Context, id uuid.UUID, from []domain.OrderStatus, to domain.OrderStatus, reason, intentID, eventType string, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}

	matched := false
	for _, st := range from {
		if o.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	o.Status = to
	if reason != "" {
		o.FailureReason = reason
	}
	if intentID != "" {
		o.PaymentIntentID = intentID
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o

	if eventType != "" {
		s.Events = append(s.Events, RecordedEvent{OrderID: id, Type: eventType, Payload: payload})
	}
	return true, nil
}
