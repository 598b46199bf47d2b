package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/order/domain"
)

// Service owns order status transitions. Only the saga coordinator calls
// the mutating methods; everything else reads.
type Service struct {
	log  *slog.Logger
	repo OrderRepository
}

func NewService(log *slog.Logger, repo OrderRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) Create(ctx context.Context, o domain.Order) error {
	if o.Status != domain.StatusPending {
		return domain.ErrInvalidState
	}
	return s.repo.Create(ctx, o)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	applied, err := s.repo.Transition(ctx, id,
		[]domain.OrderStatus{domain.StatusPending},
		domain.StatusAwaitingPayment, "", intentID, "", nil)
	if err != nil {
		return err
	}
	if !applied {
		return s.classify(ctx, id, domain.StatusAwaitingPayment)
	}
	return nil
}

func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(domain.OrderPaid{
		OrderID:    o.ID.String(),
		AccountID:  o.AccountID,
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
	})
	if err != nil {
		return err
	}
	applied, err := s.repo.Transition(ctx, id,
		[]domain.OrderStatus{domain.StatusAwaitingPayment},
		domain.StatusPaid, "", "", "OrderPaid", payload)
	if err != nil {
		return err
	}
	if !applied {
		return s.classify(ctx, id, domain.StatusPaid)
	}
	s.log.Info("order paid", "order_id", id)
	return nil
}

func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	payload, err := json.Marshal(domain.OrderFailed{OrderID: id.String(), Reason: reason})
	if err != nil {
		return err
	}
	return s.terminate(ctx, id, domain.StatusFailed, reason, "OrderFailed", payload)
}

func (s *Service) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	payload, err := json.Marshal(domain.OrderCancelled{OrderID: id.String(), Reason: reason})
	if err != nil {
		return err
	}
	return s.terminate(ctx, id, domain.StatusCancelled, reason, "OrderCancelled", payload)
}

func (s *Service) terminate(ctx context.Context, id uuid.UUID, to domain.OrderStatus, reason, eventType string, payload []byte) error {
	applied, err := s.repo.Transition(ctx, id,
		[]domain.OrderStatus{domain.StatusPending, domain.StatusAwaitingPayment},
		to, reason, "", eventType, payload)
	if err != nil {
		return err
	}
	if !applied {
		return s.classify(ctx, id, to)
	}
	s.log.Info("order terminated", "order_id", id, "status", to, "reason", reason)
	return nil
}

// classify turns a lost conditional update into the right error: replays of
// an already-applied transition are no-ops, terminating a paid order is the
// operator-alert case, anything else is an invalid transition.
func (s *Service) classify(ctx context.Context, id uuid.UUID, wanted domain.OrderStatus) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == wanted {
		return nil
	}
	if o.Status == domain.StatusPaid && wanted.IsTerminal() {
		s.log.Error("post-payment cancellation attempted, operator intervention required",
			"order_id", id, "requested", wanted)
		return domain.ErrPostPaymentCancellation
	}
	return domain.ErrInvalidState
}
