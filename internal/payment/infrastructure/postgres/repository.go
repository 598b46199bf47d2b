package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadware/fulfillment/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Upsert(ctx context.Context, p domain.Intent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_intents (intent_id, order_id, amount_cents, currency, status, client_secret, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (order_id) DO UPDATE SET status=$5, updated_at=$8`,
		p.ID, p.OrderID, p.AmountCents, p.Currency, p.Status, p.ClientSecret, p.CreatedAt, time.Now().UTC())
	return err
}

func (r *Repository) Get(ctx context.Context, intentID string) (domain.Intent, error) {
	return r.get(ctx, `SELECT intent_id, order_id, amount_cents, currency, status, client_secret, created_at, updated_at
		FROM payment_intents WHERE intent_id=$1`, intentID)
}

func (r *Repository) GetByOrder(ctx context.Context, orderID uuid.UUID) (domain.Intent, error) {
	return r.get(ctx, `SELECT intent_id, order_id, amount_cents, currency, status, client_secret, created_at, updated_at
		FROM payment_intents WHERE order_id=$1`, orderID)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (domain.Intent, error) {
	var p domain.Intent
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Currency, &p.Status, &p.ClientSecret, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Intent{}, domain.ErrIntentNotFound
	}
	if err != nil {
		return domain.Intent{}, err
	}
	return p, nil
}

func (r *Repository) SetStatus(ctx context.Context, intentID string, status domain.IntentStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payment_intents SET status=$2, updated_at=$3 WHERE intent_id=$1`,
		intentID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrIntentNotFound
	}
	return nil
}
