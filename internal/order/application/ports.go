package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/order/domain"
)

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)

	// Transition conditionally moves the order from one of the given
	// statuses to the target, recording the reason and intent id when set,
	// and writes the outbox event in the same transaction when eventType is
	// non-empty. It reports whether a row actually changed so callers can
	// tell an applied transition from a lost race.
	Transition(ctx context.Context, id uuid.UUID, from []domain.OrderStatus, to domain.OrderStatus, reason, intentID, eventType string, payload []byte) (bool, error)
}
