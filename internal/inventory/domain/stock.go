package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StockRecord tracks two counters per SKU: available is total owned stock,
// reserved is the portion earmarked for in-flight checkouts. Sellable stock
// is the difference and must never go negative.
type StockRecord struct {
	SKU          string
	Available    int
	Reserved     int
	ReorderPoint int
	UpdatedAt    time.Time
}

func (s StockRecord) Sellable() int { return s.Available - s.Reserved }

func (s StockRecord) BelowReorderPoint() bool { return s.Available < s.ReorderPoint }

type ReservationState string

const (
	StateHeld      ReservationState = "held"
	StateCommitted ReservationState = "committed"
	StateReleased  ReservationState = "released"
)

// Reservation is a time-bounded hold against sellable stock for one
// checkout attempt. It leaves the held state exactly once.
type Reservation struct {
	ID        uuid.UUID
	SKU       string
	Quantity  int
	State     ReservationState
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return r.State == StateHeld && now.After(r.ExpiresAt)
}

var (
	ErrSKUNotFound         = errors.New("sku not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

// InsufficientStockError names the offending SKU so checkout can surface it.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Sellable  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, sellable %d", e.SKU, e.Requested, e.Sellable)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
