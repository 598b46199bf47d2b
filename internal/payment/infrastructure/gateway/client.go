// Package gateway is the REST client for the external payment provider.
// Calls run through a circuit breaker so a degraded gateway fails checkout
// fast instead of tying up request handlers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/threadware/fulfillment/internal/payment/domain"
)

type Client struct {
	log     *slog.Logger
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[intentResponse]
}

type intentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func NewClient(log *slog.Logger, baseURL, apiKey string) *Client {
	settings := gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[intentResponse](settings),
	}
}

func (c *Client) CreateIntent(ctx context.Context, idempotencyKey string, amountCents int64, currency string) (domain.Intent, error) {
	resp, err := c.breaker.Execute(func() (intentResponse, error) {
		return c.createIntent(ctx, idempotencyKey, amountCents, currency)
	})
	if err != nil {
		return domain.Intent{}, err
	}

	now := time.Now().UTC()
	return domain.Intent{
		ID:           resp.IntentID,
		AmountCents:  amountCents,
		Currency:     currency,
		Status:       domain.IntentRequiresConfirmation,
		ClientSecret: resp.ClientSecret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Client) createIntent(ctx context.Context, idempotencyKey string, amountCents int64, currency string) (intentResponse, error) {
	body, err := json.Marshal(map[string]any{
		"amount_cents": amountCents,
		"currency":     currency,
	})
	if err != nil {
		return intentResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return intentResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return intentResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return intentResponse{}, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return intentResponse{}, err
	}
	if out.IntentID == "" {
		return intentResponse{}, fmt.Errorf("gateway response missing intent_id")
	}
	return out, nil
}
