package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/threadware/fulfillment/internal/catalog/domain"
	"github.com/threadware/fulfillment/internal/checkout/application"
	inventoryapp "github.com/threadware/fulfillment/internal/inventory/application"
	inventorymem "github.com/threadware/fulfillment/internal/inventory/infrastructure/memory"
	orderapp "github.com/threadware/fulfillment/internal/order/application"
	ordermem "github.com/threadware/fulfillment/internal/order/infrastructure/memory"
	paymentapp "github.com/threadware/fulfillment/internal/payment/application"
	paymentdomain "github.com/threadware/fulfillment/internal/payment/domain"
)

var webhookSecret = []byte("whsec_handler_test")

type stubGateway struct{}

func (stubGateway) CreateIntent(_ context.Context, idempotencyKey string, amountCents int64, currency string) (paymentdomain.Intent, error) {
	return paymentdomain.Intent{
		ID:           "pi_" + idempotencyKey[:8],
		AmountCents:  amountCents,
		Currency:     currency,
		Status:       paymentdomain.IntentRequiresConfirmation,
		ClientSecret: "cs_" + idempotencyKey[:8],
	}, nil
}

type memIntents struct {
	mu      sync.Mutex
	byID    map[string]paymentdomain.Intent
	byOrder map[uuid.UUID]paymentdomain.Intent
}

func newMemIntents() *memIntents {
	return &memIntents{byID: map[string]paymentdomain.Intent{}, byOrder: map[uuid.UUID]paymentdomain.Intent{}}
}

func (s *memIntents) Upsert(_ context.Context, p paymentdomain.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
	s.byOrder[p.OrderID] = p
	return nil
}

func (s *memIntents) Get(_ context.Context, id string) (paymentdomain.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return paymentdomain.Intent{}, paymentdomain.ErrIntentNotFound
	}
	return p, nil
}

func (s *memIntents) GetByOrder(_ context.Context, orderID uuid.UUID) (paymentdomain.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byOrder[orderID]
	if !ok {
		return paymentdomain.Intent{}, paymentdomain.ErrIntentNotFound
	}
	return p, nil
}

func (s *memIntents) SetStatus(_ context.Context, id string, status paymentdomain.IntentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return paymentdomain.ErrIntentNotFound
	}
	p.Status = status
	s.byID[id] = p
	s.byOrder[p.OrderID] = p
	return nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

func (d *memDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

type memCatalog struct {
	skus map[string]catalogdomain.SKU
}

func (c *memCatalog) GetSKU(_ context.Context, id string) (catalogdomain.SKU, error) {
	sku, ok := c.skus[id]
	if !ok {
		return catalogdomain.SKU{}, catalogdomain.ErrSKUNotFound
	}
	return sku, nil
}

type serverFixture struct {
	srv     *httptest.Server
	intents *memIntents
}

func newServer(t *testing.T) *serverFixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	stock := inventorymem.NewStore()
	stock.Seed("FAB-TWILL-NAVY", 100, 10)
	stock.Seed("FAB-VELVET-RED", 5, 2)

	catalog := &memCatalog{skus: map[string]catalogdomain.SKU{
		"FAB-TWILL-NAVY": {ID: "FAB-TWILL-NAVY", Name: "Navy cotton twill", PriceCents: 1250, Currency: "USD", Active: true},
		"FAB-VELVET-RED": {ID: "FAB-VELVET-RED", Name: "Red velvet", PriceCents: 4800, Currency: "USD", Active: true},
	}}

	intents := newMemIntents()
	orchestrator := paymentapp.NewOrchestrator(log, stubGateway{}, intents, &memDeduper{}, webhookSecret)

	orders := orderapp.NewService(log, ordermem.NewStore())
	manager := inventoryapp.NewManager(log, stock, time.Minute)
	ledger := inventoryapp.NewLedger(log, stock)

	coordinator := application.NewCoordinator(log, manager, orders, orchestrator, catalog,
		application.Pricing{TaxBps: 825, ShippingCents: 1500, Currency: "USD"})
	orchestrator.BindSaga(coordinator)

	srv := httptest.NewServer(NewHandler(log, coordinator, orders, orchestrator, ledger).Routes())
	t.Cleanup(srv.Close)
	return &serverFixture{srv: srv, intents: intents}
}

func (f *serverFixture) checkout(t *testing.T, sku string, quantity int) *http.Response {
	t.Helper()
	body := fmt.Sprintf(`{
		"line_items": [{"sku_id": %q, "quantity": %d}],
		"shipping_address": {"line1": "12 Loom St", "city": "Lowell", "region": "MA", "postal_code": "01850", "country": "US"}
	}`, sku, quantity)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/checkout", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-Account-ID", "acct_mill_42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (f *serverFixture) webhook(t *testing.T, ev paymentdomain.WebhookEvent, signature string) *http.Response {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	if signature == "" {
		signature = paymentapp.Sign(webhookSecret, body)
	}
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Gateway-Signature", signature)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCheckoutToPaidFlow(t *testing.T) {
	f := newServer(t)

	resp := f.checkout(t, "FAB-TWILL-NAVY", 10)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	orderID := created["order_id"].(string)
	require.NotEmpty(t, created["payment_intent_client_secret"])

	resp, err := http.Get(f.srv.URL + "/inventory/FAB-TWILL-NAVY")
	require.NoError(t, err)
	stock := decode(t, resp)
	assert.Equal(t, float64(100), stock["available"])
	assert.Equal(t, float64(10), stock["reserved"])

	intent, err := f.intents.GetByOrder(context.Background(), uuid.MustParse(orderID))
	require.NoError(t, err)

	resp = f.webhook(t, paymentdomain.WebhookEvent{
		EventID: "evt_1", EventType: "intent.updated", IntentID: intent.ID, Status: "succeeded",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "applied", decode(t, resp)["outcome"])

	resp, err = http.Get(f.srv.URL + "/orders/" + orderID)
	require.NoError(t, err)
	order := decode(t, resp)
	assert.Equal(t, "paid", order["status"])
	assert.Equal(t, float64(12_500), order["subtotal_cents"])

	resp, err = http.Get(f.srv.URL + "/inventory/FAB-TWILL-NAVY")
	require.NoError(t, err)
	stock = decode(t, resp)
	assert.Equal(t, float64(90), stock["available"])
	assert.Equal(t, float64(0), stock["reserved"])
}

func TestWebhookReplayReportsAlreadyProcessed(t *testing.T) {
	f := newServer(t)

	resp := f.checkout(t, "FAB-TWILL-NAVY", 10)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decode(t, resp)["order_id"].(string)
	intent, err := f.intents.GetByOrder(context.Background(), uuid.MustParse(orderID))
	require.NoError(t, err)

	ev := paymentdomain.WebhookEvent{EventID: "evt_1", IntentID: intent.ID, Status: "succeeded"}
	resp = f.webhook(t, ev, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp = f.webhook(t, ev, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_processed", decode(t, resp)["outcome"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newServer(t)

	resp := f.webhook(t, paymentdomain.WebhookEvent{EventID: "evt_x", IntentID: "pi_x", Status: "succeeded"}, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "gateway_unverified", decode(t, resp)["kind"])
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	f := newServer(t)

	body := `{"line_items": [{"sku_id": "FAB-TWILL-NAVY", "quantity": 1, "unit_price_cents": 1}], "shipping_address": {}}`
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/checkout", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-Account-ID", "acct_mill_42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", decode(t, resp)["kind"])
}

func TestCheckoutRequiresAccountHeader(t *testing.T) {
	f := newServer(t)

	resp, err := http.Post(f.srv.URL+"/checkout", "application/json", bytes.NewBufferString(`{"line_items": []}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", decode(t, resp)["kind"])
}

func TestCheckoutInsufficientStockConflicts(t *testing.T) {
	f := newServer(t)

	resp := f.checkout(t, "FAB-VELVET-RED", 50)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient_stock", decode(t, resp)["kind"])
}

func TestInventoryAdjustment(t *testing.T) {
	f := newServer(t)

	resp, err := http.Post(f.srv.URL+"/inventory/FAB-VELVET-RED/adjust", "application/json", bytes.NewBufferString(`{"delta": 20}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(f.srv.URL + "/inventory/FAB-VELVET-RED")
	require.NoError(t, err)
	stock := decode(t, resp)
	assert.Equal(t, float64(25), stock["available"])
	assert.Equal(t, float64(25), stock["sellable"])
}

func TestGetUnknownOrderIs404(t *testing.T) {
	f := newServer(t)

	resp, err := http.Get(f.srv.URL + "/orders/" + uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode(t, resp)["kind"])
}
