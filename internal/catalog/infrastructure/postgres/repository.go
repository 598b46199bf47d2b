package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadware/fulfillment/internal/catalog/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetSKU(ctx context.Context, id string) (domain.SKU, error) {
	var sku domain.SKU
	err := r.pool.QueryRow(ctx, `SELECT sku_id, name, price_cents, currency, active FROM catalog_skus WHERE sku_id=$1`, id).
		Scan(&sku.ID, &sku.Name, &sku.PriceCents, &sku.Currency, &sku.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SKU{}, domain.ErrSKUNotFound
	}
	if err != nil {
		return domain.SKU{}, err
	}
	return sku, nil
}
