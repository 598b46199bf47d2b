package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogdomain "github.com/threadware/fulfillment/internal/catalog/domain"
	"github.com/threadware/fulfillment/internal/checkout/application"
	inventoryapp "github.com/threadware/fulfillment/internal/inventory/application"
	inventorydomain "github.com/threadware/fulfillment/internal/inventory/domain"
	orderdomain "github.com/threadware/fulfillment/internal/order/domain"
	paymentapp "github.com/threadware/fulfillment/internal/payment/application"
	paymentdomain "github.com/threadware/fulfillment/internal/payment/domain"
)

const signatureHeader = "X-Gateway-Signature"

type Handler struct {
	log         *slog.Logger
	coordinator *application.Coordinator
	orders      application.Orders
	payments    *paymentapp.Orchestrator
	ledger      *inventoryapp.Ledger
	tracer      trace.Tracer
}

func NewHandler(log *slog.Logger, coordinator *application.Coordinator, orders application.Orders, payments *paymentapp.Orchestrator, ledger *inventoryapp.Ledger) *Handler {
	return &Handler{
		log:         log,
		coordinator: coordinator,
		orders:      orders,
		payments:    payments,
		ledger:      ledger,
		tracer:      otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/webhooks/payment", h.paymentWebhook)
	r.Post("/inventory/{sku}/adjust", h.adjustStock)
	r.Get("/inventory/{sku}", h.getStock)
	return r
}

type checkoutReq struct {
	LineItems []struct {
		SKU      string `json:"sku_id"`
		Quantity int    `json:"quantity"`
	} `json:"line_items"`
	ShippingAddress orderdomain.Address `json:"shipping_address"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	accountID := r.Header.Get("X-Account-ID")
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing account id")
		return
	}

	var req checkoutReq
	dec := json.NewDecoder(r.Body)
	// Unknown fields are rejected so client-supplied prices or stray config
	// can never ride along silently.
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body: "+err.Error())
		return
	}

	placeReq := application.PlaceOrderRequest{
		AccountID:       accountID,
		ShippingAddress: req.ShippingAddress,
	}
	for _, item := range req.LineItems {
		placeReq.Items = append(placeReq.Items, application.LineItemRequest{SKU: item.SKU, Quantity: item.Quantity})
	}

	result, err := h.coordinator.PlaceOrder(ctx, placeReq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"order_id":                     result.OrderID.String(),
		"payment_intent_client_secret": result.ClientSecret,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid order id")
		return
	}
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, map[string]any{
			"sku_id":           item.SKU,
			"quantity":         item.Quantity,
			"unit_price_cents": item.UnitPriceCents,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order_id":       o.ID.String(),
		"status":         o.Status,
		"line_items":     items,
		"subtotal_cents": o.SubtotalCents,
		"tax_cents":      o.TaxCents,
		"shipping_cents": o.ShippingCents,
		"total_cents":    o.TotalCents,
		"currency":       o.Currency,
	})
}

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	outcome, err := h.payments.HandleConfirmation(ctx, body, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, paymentdomain.ErrGatewayUnverified) {
			writeError(w, http.StatusUnauthorized, "gateway_unverified", "signature verification failed")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"outcome": string(outcome)})
}

type adjustReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	var req adjustReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}
	if err := h.ledger.AdjustAvailable(ctx, chi.URLParam(r, "sku"), req.Delta); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetStock")
	defer span.End()

	rec, err := h.ledger.GetStock(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sku_id":    rec.SKU,
		"available": rec.Available,
		"reserved":  rec.Reserved,
		"sellable":  rec.Sellable(),
	})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *inventorydomain.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, "insufficient_stock", insufficient.Error())
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, inventorydomain.ErrSKUNotFound),
		errors.Is(err, catalogdomain.ErrSKUNotFound),
		errors.Is(err, paymentdomain.ErrIntentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, application.ErrEmptyCart),
		errors.Is(err, application.ErrInvalidQuantity),
		errors.Is(err, application.ErrSKUInactive):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, orderdomain.ErrPostPaymentCancellation):
		writeError(w, http.StatusConflict, "post_payment_cancellation", err.Error())
	case errors.Is(err, orderdomain.ErrInvalidState),
		errors.Is(err, inventorydomain.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, orderdomain.ErrConsistencyFault):
		writeError(w, http.StatusInternalServerError, "consistency_fault", err.Error())
	default:
		h.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// readBody caps webhook payloads; the gateway sends small JSON documents.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"kind": kind, "message": message})
}
