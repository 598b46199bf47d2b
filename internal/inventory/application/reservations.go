package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/inventory/domain"
)

const DefaultHoldTTL = 15 * time.Minute

// Manager owns the reservation lifecycle. It is the only component allowed
// to move stock between available, reserved and committed.
type Manager struct {
	log   *slog.Logger
	store StockStore
	ttl   time.Duration
}

func NewManager(log *slog.Logger, store StockStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &Manager{log: log, store: store, ttl: ttl}
}

func (m *Manager) Reserve(ctx context.Context, sku string, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, &domain.InsufficientStockError{SKU: sku, Requested: quantity}
	}
	res, err := m.store.ReserveStock(ctx, sku, quantity, m.ttl)
	if err != nil {
		return domain.Reservation{}, err
	}
	m.log.Info("stock reserved", "sku", sku, "quantity", quantity, "reservation_id", res.ID, "expires_at", res.ExpiresAt)
	return res, nil
}

// Commit converts a hold into a permanent deduction. Re-committing an
// already committed reservation is a no-op so webhook replays stay safe.
func (m *Manager) Commit(ctx context.Context, id uuid.UUID) error {
	rec, err := m.store.CommitReservation(ctx, id)
	if err != nil {
		return err
	}
	if rec.BelowReorderPoint() {
		m.log.Warn("stock below reorder point", "sku", rec.SKU, "available", rec.Available, "reorder_point", rec.ReorderPoint)
	}
	return nil
}

// Release returns a held quantity to the sellable pool. Double release is a
// no-op; releasing a committed reservation is an invalid transition.
func (m *Manager) Release(ctx context.Context, id uuid.UUID) error {
	return m.store.ReleaseReservation(ctx, id)
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return m.store.GetReservation(ctx, id)
}
