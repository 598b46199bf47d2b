package application

import (
	"context"

	"github.com/google/uuid"

	catalogdomain "github.com/threadware/fulfillment/internal/catalog/domain"
	inventorydomain "github.com/threadware/fulfillment/internal/inventory/domain"
	orderdomain "github.com/threadware/fulfillment/internal/order/domain"
	paymentdomain "github.com/threadware/fulfillment/internal/payment/domain"
)

type Reservations interface {
	Reserve(ctx context.Context, sku string, quantity int) (inventorydomain.Reservation, error)
	Commit(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
}

type Orders interface {
	Create(ctx context.Context, o orderdomain.Order) error
	Get(ctx context.Context, id uuid.UUID) (orderdomain.Order, error)
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error
}

type Payments interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (paymentdomain.Intent, error)
}

type Catalog interface {
	GetSKU(ctx context.Context, id string) (catalogdomain.SKU, error)
}
