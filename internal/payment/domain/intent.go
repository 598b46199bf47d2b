package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentSucceeded            IntentStatus = "succeeded"
	IntentFailed               IntentStatus = "failed"
	IntentCancelled            IntentStatus = "cancelled"
)

// Intent is the local mirror of the gateway's pending charge. It is
// rebuildable from the gateway; the orders table, not this record, is the
// source of truth for whether money corresponds to a committed order.
type Intent struct {
	ID           string
	OrderID      uuid.UUID
	AmountCents  int64
	Currency     string
	Status       IntentStatus
	ClientSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WebhookEvent is the gateway's confirmation payload. Its signature must be
// verified before any field is trusted.
type WebhookEvent struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	IntentID  string `json:"intent_id"`
	Status    string `json:"status"`
}

// ConfirmationOutcome makes webhook replay safety explicit.
type ConfirmationOutcome string

const (
	OutcomeApplied          ConfirmationOutcome = "applied"
	OutcomeAlreadyProcessed ConfirmationOutcome = "already_processed"
	OutcomeRejected         ConfirmationOutcome = "rejected"
)

var (
	ErrIntentNotFound = errors.New("payment intent not found")

	// ErrGatewayUnverified marks a confirmation that failed its signature
	// check. It is dropped and audit-logged, never advancing order state.
	ErrGatewayUnverified = errors.New("gateway event failed verification")
)
