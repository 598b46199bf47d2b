package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	inventorydomain "github.com/threadware/fulfillment/internal/inventory/domain"
	orderdomain "github.com/threadware/fulfillment/internal/order/domain"
)

var (
	ErrEmptyCart       = errors.New("no line items in checkout")
	ErrInvalidQuantity = errors.New("line item quantity must be positive")
	ErrSKUInactive     = errors.New("sku not orderable")
)

// Pricing is the server-side total policy. Tax is charged in basis points
// of the subtotal; shipping is flat per order.
type Pricing struct {
	TaxBps        int64
	ShippingCents int64
	Currency      string
}

func (p Pricing) Tax(subtotal int64) int64 { return subtotal * p.TaxBps / 10_000 }

type LineItemRequest struct {
	SKU      string
	Quantity int
}

type PlaceOrderRequest struct {
	AccountID       string
	Items           []LineItemRequest
	ShippingAddress orderdomain.Address
}

type PlaceOrderResult struct {
	OrderID      uuid.UUID
	ClientSecret string
}

// Coordinator sequences the fulfillment saga: validate, reserve, persist,
// create intent, and later commit or roll back on the gateway's verdict.
// Every partial failure releases whatever the attempt acquired.
type Coordinator struct {
	log          *slog.Logger
	reservations Reservations
	orders       Orders
	payments     Payments
	catalog      Catalog
	pricing      Pricing
	tracer       trace.Tracer
}

func NewCoordinator(log *slog.Logger, reservations Reservations, orders Orders, payments Payments, catalog Catalog, pricing Pricing) *Coordinator {
	return &Coordinator{
		log:          log,
		reservations: reservations,
		orders:       orders,
		payments:     payments,
		catalog:      catalog,
		pricing:      pricing,
		tracer:       otel.Tracer("checkout-coordinator"),
	}
}

func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	ctx, span := c.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	if len(req.Items) == 0 {
		return PlaceOrderResult{}, ErrEmptyCart
	}

	// Authoritative prices come from the catalog; the request never
	// carries them.
	priced := make([]orderdomain.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return PlaceOrderResult{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, item.SKU)
		}
		sku, err := c.catalog.GetSKU(ctx, item.SKU)
		if err != nil {
			return PlaceOrderResult{}, err
		}
		if !sku.Active {
			return PlaceOrderResult{}, fmt.Errorf("%w: %s", ErrSKUInactive, item.SKU)
		}
		priced = append(priced, orderdomain.LineItem{
			SKU:            sku.ID,
			Quantity:       item.Quantity,
			UnitPriceCents: sku.PriceCents,
		})
	}

	acquired := make([]uuid.UUID, 0, len(priced))
	for i := range priced {
		res, err := c.reservations.Reserve(ctx, priced[i].SKU, priced[i].Quantity)
		if err != nil {
			c.releaseAll(ctx, acquired)
			return PlaceOrderResult{}, err
		}
		priced[i].ReservationID = res.ID
		acquired = append(acquired, res.ID)
	}

	o := orderdomain.NewOrder(req.AccountID, priced, req.ShippingAddress,
		c.pricing.Tax(sumSubtotal(priced)), c.pricing.ShippingCents, c.pricing.Currency)
	if err := c.orders.Create(ctx, o); err != nil {
		c.releaseAll(ctx, acquired)
		return PlaceOrderResult{}, err
	}

	intent, err := c.payments.CreateIntent(ctx, o.ID, o.TotalCents, o.Currency)
	if err != nil {
		c.releaseAll(ctx, acquired)
		if mfErr := c.orders.MarkFailed(ctx, o.ID, "payment intent creation failed"); mfErr != nil {
			c.log.Error("failed order could not be marked", "order_id", o.ID, "err", mfErr)
		}
		return PlaceOrderResult{}, err
	}

	if err := c.orders.AttachPaymentIntent(ctx, o.ID, intent.ID); err != nil {
		c.releaseAll(ctx, acquired)
		return PlaceOrderResult{}, err
	}

	c.log.Info("checkout awaiting payment", "order_id", o.ID, "intent_id", intent.ID, "total_cents", o.TotalCents)
	return PlaceOrderResult{OrderID: o.ID, ClientSecret: intent.ClientSecret}, nil
}

// OnPaymentConfirmed commits every reservation and marks the order paid.
// Replays are no-ops. A commit that fails after its preconditions held is a
// consistency fault: processing of that order halts and an operator is
// alerted, nothing is guessed.
func (c *Coordinator) OnPaymentConfirmed(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := c.tracer.Start(ctx, "OnPaymentConfirmed")
	defer span.End()

	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status == orderdomain.StatusPaid || o.Status == orderdomain.StatusFulfilling {
		return nil
	}
	if o.Status != orderdomain.StatusAwaitingPayment {
		c.log.Error("alert: payment confirmed for order not awaiting payment",
			"order_id", orderID, "status", o.Status)
		return fmt.Errorf("%w: order %s is %s", orderdomain.ErrConsistencyFault, orderID, o.Status)
	}

	for _, resID := range o.ReservationIDs() {
		if err := c.reservations.Commit(ctx, resID); err != nil {
			c.log.Error("alert: reservation commit failed after payment, halting order",
				"order_id", orderID, "reservation_id", resID, "err", err)
			return fmt.Errorf("%w: commit reservation %s: %v", orderdomain.ErrConsistencyFault, resID, err)
		}
	}
	return c.orders.MarkPaid(ctx, orderID)
}

// OnPaymentFailed releases every reservation and fails the order. Safe
// under replay; a cancellation reason routes to the cancelled status.
func (c *Coordinator) OnPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	ctx, span := c.tracer.Start(ctx, "OnPaymentFailed")
	defer span.End()

	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status.IsTerminal() {
		return nil
	}

	c.releaseAll(ctx, o.ReservationIDs())

	if reason == "payment cancelled" {
		return c.orders.MarkCancelled(ctx, orderID, reason)
	}
	return c.orders.MarkFailed(ctx, orderID, reason)
}

func (c *Coordinator) releaseAll(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		if err := c.reservations.Release(ctx, id); err != nil &&
			!errors.Is(err, inventorydomain.ErrReservationNotFound) {
			c.log.Error("alert: reservation release failed", "reservation_id", id, "err", err)
		}
	}
}

func sumSubtotal(items []orderdomain.LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Quantity) * item.UnitPriceCents
	}
	return subtotal
}
