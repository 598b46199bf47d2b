package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/inventory/domain"
)

// StockStore is the single writer of stock counters. Every mutation is an
// atomic conditional update: implementations must never read-then-write.
type StockStore interface {
	GetStock(ctx context.Context, sku string) (domain.StockRecord, error)

	// AdjustAvailable applies an administrative restock or correction.
	// It fails with ErrSKUNotFound for unknown SKUs and with
	// ErrInvalidState when the delta would drive available below reserved.
	AdjustAvailable(ctx context.Context, sku string, delta int) error

	// ReserveStock is a single atomic check-and-increment of reserved.
	// It returns InsufficientStockError when sellable < quantity.
	ReserveStock(ctx context.Context, sku string, quantity int, ttl time.Duration) (domain.Reservation, error)

	// CommitReservation fires the held -> committed transition and converts
	// the hold into a permanent deduction from available. An
	// already-committed reservation is a no-op; released or unknown ones
	// fail with ErrInvalidState / ErrReservationNotFound. The returned
	// record reflects the post-commit counters.
	CommitReservation(ctx context.Context, id uuid.UUID) (domain.StockRecord, error)

	// ReleaseReservation fires held -> released and returns the quantity to
	// the sellable pool. Double release is a no-op.
	ReleaseReservation(ctx context.Context, id uuid.UUID) error

	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)

	// ReleaseExpired releases every held reservation past its deadline as
	// of now, atomically per row, and reports how many were released.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}
