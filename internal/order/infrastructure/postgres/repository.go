package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadware/fulfillment/internal/order/domain"
	"github.com/threadware/fulfillment/pkg/outbox"
	"github.com/threadware/fulfillment/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, account_id, status, subtotal_cents, tax_cents, shipping_cents, total_cents,
			currency, shipping_address, payment_intent_id, failure_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.AccountID, o.Status, o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents,
		o.Currency, o.ShippingAddress, o.PaymentIntentID, o.FailureReason, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, sku_id, quantity, unit_price_cents, reservation_id)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, item.SKU, item.Quantity, item.UnitPriceCents, item.ReservationID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, status, subtotal_cents, tax_cents, shipping_cents, total_cents,
			currency, shipping_address, payment_intent_id, failure_reason, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.AccountID, &o.Status, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
			&o.Currency, &o.ShippingAddress, &o.PaymentIntentID, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT sku_id, quantity, unit_price_cents, reservation_id
		FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.SKU, &item.Quantity, &item.UnitPriceCents, &item.ReservationID); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []domain.OrderStatus, to domain.OrderStatus, reason, intentID, eventType string, payload []byte) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	fromStrs := make([]string, 0, len(from))
	for _, st := range from {
		fromStrs = append(fromStrs, string(st))
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2,
			failure_reason = CASE WHEN $3 <> '' THEN $3 ELSE failure_reason END,
			payment_intent_id = CASE WHEN $4 <> '' THEN $4 ELSE payment_intent_id END,
			updated_at=$5
		WHERE id=$1 AND status = ANY($6)`,
		id, to, reason, intentID, time.Now().UTC(), fromStrs)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if eventType != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			"order", id.String(), eventType, payload, map[string]string{"source": "fulfillment-service"},
			tracing.Traceparent(ctx), outbox.StatusPending)
		if err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}
