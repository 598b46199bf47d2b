package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	StatusPaid            OrderStatus = "paid"
	StatusFulfilling      OrderStatus = "fulfilling"
	StatusCancelled       OrderStatus = "cancelled"
	StatusFailed          OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusFailed
}

// transitions is the full status machine; every status write is validated
// against it and additionally enforced by a conditional update in the store.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:         {StatusAwaitingPayment, StatusCancelled, StatusFailed},
	StatusAwaitingPayment: {StatusPaid, StatusCancelled, StatusFailed},
	StatusPaid:            {StatusFulfilling},
	StatusFulfilling:      {},
	StatusCancelled:       {},
	StatusFailed:          {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidState  = errors.New("invalid order state")

	// ErrPostPaymentCancellation marks an attempt to cancel or fail a paid
	// order. That needs a refund flow and an operator, never an automatic
	// status write.
	ErrPostPaymentCancellation = errors.New("post-payment cancellation attempted")

	// ErrConsistencyFault marks a commit or release that failed after its
	// preconditions were satisfied. Automatic processing of the order must
	// stop and an operator be alerted.
	ErrConsistencyFault = errors.New("consistency fault")
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type LineItem struct {
	SKU            string
	Quantity       int
	UnitPriceCents int64
	ReservationID  uuid.UUID
}

type Order struct {
	ID              uuid.UUID
	AccountID       string
	Items           []LineItem
	ShippingAddress Address
	SubtotalCents   int64
	TaxCents        int64
	ShippingCents   int64
	TotalCents      int64
	Currency        string
	PaymentIntentID string
	Status          OrderStatus
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder builds a pending order. Totals come from the authoritative unit
// prices already resolved against the catalog; client prices never reach
// this constructor.
func NewOrder(accountID string, items []LineItem, addr Address, taxCents, shippingCents int64, currency string) Order {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Quantity) * item.UnitPriceCents
	}
	now := time.Now().UTC()
	return Order{
		ID:              uuid.New(),
		AccountID:       accountID,
		Items:           items,
		ShippingAddress: addr,
		SubtotalCents:   subtotal,
		TaxCents:        taxCents,
		ShippingCents:   shippingCents,
		TotalCents:      subtotal + taxCents + shippingCents,
		Currency:        currency,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (o Order) ReservationIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ReservationID)
	}
	return ids
}
