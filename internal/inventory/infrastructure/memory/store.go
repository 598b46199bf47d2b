// Package memory implements application.StockStore with in-memory storage.
// It honors the same atomic check-and-mutate contract as the Postgres store
// (a single mutex plays the role of the row lock) and backs the unit and
// property tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/inventory/domain"
)

type Store struct {
	mu           sync.Mutex
	stocks       map[string]*domain.StockRecord
	reservations map[uuid.UUID]*domain.Reservation
}

func NewStore() *Store {
	return &Store{
		stocks:       make(map[string]*domain.StockRecord),
		reservations: make(map[uuid.UUID]*domain.Reservation),
	}
}

// Seed creates or replaces a stock record; used by catalog seeding and tests.
func (s *Store) Seed(sku string, available, reorderPoint int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[sku] = &domain.StockRecord{
		SKU:          sku,
		Available:    available,
		ReorderPoint: reorderPoint,
		UpdatedAt:    time.Now().UTC(),
	}
}

func (s *Store) GetStock(_ context.Context, sku string) (domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stocks[sku]
	if !ok {
		return domain.StockRecord{}, domain.ErrSKUNotFound
	}
	return *rec, nil
}

func (s *Store) AdjustAvailable(_ context.Context, sku string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stocks[sku]
	if !ok {
		return domain.ErrSKUNotFound
	}
	if rec.Available+delta < rec.Reserved {
		return domain.ErrInvalidState
	}
	rec.Available += delta
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ReserveStock(_ context.Context, sku string, quantity int, ttl time.Duration) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stocks[sku]
	if !ok {
		return domain.Reservation{}, domain.ErrSKUNotFound
	}
	if rec.Sellable() < quantity {
		return domain.Reservation{}, &domain.InsufficientStockError{SKU: sku, Requested: quantity, Sellable: rec.Sellable()}
	}
	rec.Reserved += quantity
	rec.UpdatedAt = time.Now().UTC()

	now := time.Now().UTC()
	res := &domain.Reservation{
		ID:        uuid.New(),
		SKU:       sku,
		Quantity:  quantity,
		State:     domain.StateHeld,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.reservations[res.ID] = res
	return *res, nil
}

func (s *Store) CommitReservation(_ context.Context, id uuid.UUID) (domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return domain.StockRecord{}, domain.ErrReservationNotFound
	}
	rec := s.stocks[res.SKU]
	switch res.State {
	case domain.StateCommitted:
		return *rec, nil
	case domain.StateReleased:
		return domain.StockRecord{}, domain.ErrInvalidState
	}
	res.State = domain.StateCommitted
	rec.Available -= res.Quantity
	rec.Reserved -= res.Quantity
	rec.UpdatedAt = time.Now().UTC()
	return *rec, nil
}

func (s *Store) ReleaseReservation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(id)
}

func (s *Store) releaseLocked(id uuid.UUID) error {
	res, ok := s.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	switch res.State {
	case domain.StateReleased:
		return nil
	case domain.StateCommitted:
		return domain.ErrInvalidState
	}
	res.State = domain.StateReleased
	rec := s.stocks[res.SKU]
	rec.Reserved -= res.Quantity
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetReservation(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *res, nil
}

func (s *Store) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for id, res := range s.reservations {
		if res.Expired(now) {
			if err := s.releaseLocked(id); err == nil {
				released++
			}
		}
	}
	return released, nil
}
