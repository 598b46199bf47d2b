package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/payment/domain"
)

type GatewayClient interface {
	// CreateIntent asks the gateway for a charge intent. The idempotency
	// key (the order id) makes retries return the same intent instead of
	// charging twice.
	CreateIntent(ctx context.Context, idempotencyKey string, amountCents int64, currency string) (domain.Intent, error)
}

type IntentStore interface {
	Upsert(ctx context.Context, intent domain.Intent) error
	Get(ctx context.Context, intentID string) (domain.Intent, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (domain.Intent, error)
	SetStatus(ctx context.Context, intentID string, status domain.IntentStatus) error
}

// Deduper suppresses webhook replays; pkg/idempotency's Redis store
// satisfies it. Forget undoes a claim so a failed apply can be retried by
// the gateway.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Saga receives verified confirmation outcomes. The checkout coordinator
// implements it.
type Saga interface {
	OnPaymentConfirmed(ctx context.Context, orderID uuid.UUID) error
	OnPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}
