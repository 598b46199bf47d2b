package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/threadware/fulfillment/internal/payment/domain"
)

// Orchestrator adapts the fulfillment saga to the external payment gateway:
// outbound intent creation, inbound confirmation handling.
type Orchestrator struct {
	log     *slog.Logger
	gateway GatewayClient
	intents IntentStore
	dedup   Deduper
	saga    Saga
	secret  []byte
}

func NewOrchestrator(log *slog.Logger, gateway GatewayClient, intents IntentStore, dedup Deduper, secret []byte) *Orchestrator {
	return &Orchestrator{
		log:     log,
		gateway: gateway,
		intents: intents,
		dedup:   dedup,
		secret:  secret,
	}
}

// BindSaga breaks the construction cycle between the orchestrator and the
// coordinator; must be called before the first webhook is served.
func (o *Orchestrator) BindSaga(saga Saga) { o.saga = saga }

// CreateIntent is idempotent per order: a retry returns the already-created
// intent, and the order id rides to the gateway as the idempotency key.
func (o *Orchestrator) CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (domain.Intent, error) {
	existing, err := o.intents.GetByOrder(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrIntentNotFound) {
		return domain.Intent{}, err
	}

	intent, err := o.gateway.CreateIntent(ctx, orderID.String(), amountCents, currency)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("create intent: %w", err)
	}
	intent.OrderID = orderID
	if err := o.intents.Upsert(ctx, intent); err != nil {
		return domain.Intent{}, err
	}
	o.log.Info("payment intent created", "order_id", orderID, "intent_id", intent.ID, "amount_cents", amountCents)
	return intent, nil
}

// HandleConfirmation processes a gateway webhook. Verification comes first:
// an unverified event never advances state and leaves only an audit log
// entry. Verified events are deduplicated by event id, then dispatched.
func (o *Orchestrator) HandleConfirmation(ctx context.Context, body []byte, signature string) (domain.ConfirmationOutcome, error) {
	if !o.verify(body, signature) {
		o.log.Error("audit: unverified gateway event dropped", "signature", signature)
		return domain.OutcomeRejected, domain.ErrGatewayUnverified
	}

	var ev domain.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.OutcomeRejected, fmt.Errorf("decode gateway event: %w", err)
	}
	if ev.EventID == "" || ev.IntentID == "" {
		return domain.OutcomeRejected, fmt.Errorf("gateway event missing ids")
	}

	seen, err := o.dedup.Seen(ctx, "gateway:"+ev.EventID)
	if err != nil {
		return domain.OutcomeRejected, err
	}
	if seen {
		o.log.Info("duplicate gateway event skipped", "event_id", ev.EventID)
		return domain.OutcomeAlreadyProcessed, nil
	}

	if err := o.apply(ctx, ev); err != nil {
		// Release the claim so the gateway's retry is not swallowed.
		_ = o.dedup.Forget(ctx, "gateway:"+ev.EventID)
		return domain.OutcomeRejected, err
	}

	o.log.Info("gateway confirmation applied", "event_id", ev.EventID, "intent_id", ev.IntentID, "status", ev.Status)
	return domain.OutcomeApplied, nil
}

func (o *Orchestrator) apply(ctx context.Context, ev domain.WebhookEvent) error {
	intent, err := o.intents.Get(ctx, ev.IntentID)
	if err != nil {
		return err
	}

	switch ev.Status {
	case "succeeded":
		if err := o.saga.OnPaymentConfirmed(ctx, intent.OrderID); err != nil {
			return err
		}
		return o.intents.SetStatus(ctx, intent.ID, domain.IntentSucceeded)
	case "failed", "cancelled":
		if err := o.saga.OnPaymentFailed(ctx, intent.OrderID, fmt.Sprintf("payment %s", ev.Status)); err != nil {
			return err
		}
		status := domain.IntentFailed
		if ev.Status == "cancelled" {
			status = domain.IntentCancelled
		}
		return o.intents.SetStatus(ctx, intent.ID, status)
	default:
		return fmt.Errorf("unknown gateway status %q", ev.Status)
	}
}

func (o *Orchestrator) verify(body []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, o.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

// Sign computes the signature the gateway is expected to send; exported for
// tests and the local gateway stub.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
