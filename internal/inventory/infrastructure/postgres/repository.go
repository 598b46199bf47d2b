package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadware/fulfillment/internal/inventory/domain"
)

// Repository implements application.StockStore on Postgres. The no-oversell
// guarantee lives in the WHERE clauses: every counter mutation is a
// conditional UPDATE checked via rows affected, never a read-then-write.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetStock(ctx context.Context, sku string) (domain.StockRecord, error) {
	var rec domain.StockRecord
	err := r.pool.QueryRow(ctx, `SELECT sku_id, available, reserved, reorder_point, updated_at FROM stock_records WHERE sku_id=$1`, sku).
		Scan(&rec.SKU, &rec.Available, &rec.Reserved, &rec.ReorderPoint, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, domain.ErrSKUNotFound
	}
	if err != nil {
		return domain.StockRecord{}, err
	}
	return rec, nil
}

func (r *Repository) AdjustAvailable(ctx context.Context, sku string, delta int) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE stock_records
		SET available = available + $2, updated_at = now()
		WHERE sku_id = $1 AND available + $2 >= reserved`, sku, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.GetStock(ctx, sku); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *Repository) ReserveStock(ctx context.Context, sku string, quantity int, ttl time.Duration) (domain.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET reserved = reserved + $2, updated_at = now()
		WHERE sku_id = $1 AND available - reserved >= $2`, sku, quantity)
	if err != nil {
		return domain.Reservation{}, err
	}
	if ct.RowsAffected() == 0 {
		rec, err := r.GetStock(ctx, sku)
		if err != nil {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, &domain.InsufficientStockError{SKU: sku, Requested: quantity, Sellable: rec.Sellable()}
	}

	res := domain.Reservation{
		ID:        uuid.New(),
		SKU:       sku,
		Quantity:  quantity,
		State:     domain.StateHeld,
		CreatedAt: time.Now().UTC(),
	}
	res.ExpiresAt = res.CreatedAt.Add(ttl)

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (id, sku_id, quantity, state, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.ID, res.SKU, res.Quantity, res.State, res.CreatedAt, res.ExpiresAt)
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) CommitReservation(ctx context.Context, id uuid.UUID) (domain.StockRecord, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StockRecord{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var sku string
	var qty int
	err = tx.QueryRow(ctx, `
		UPDATE reservations SET state=$2
		WHERE id=$1 AND state=$3
		RETURNING sku_id, quantity`,
		id, domain.StateCommitted, domain.StateHeld).Scan(&sku, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		// Single-fire transition already happened or never existed.
		res, getErr := r.GetReservation(ctx, id)
		if getErr != nil {
			return domain.StockRecord{}, getErr
		}
		if res.State == domain.StateCommitted {
			return r.GetStock(ctx, res.SKU)
		}
		return domain.StockRecord{}, domain.ErrInvalidState
	}
	if err != nil {
		return domain.StockRecord{}, err
	}

	var rec domain.StockRecord
	err = tx.QueryRow(ctx, `
		UPDATE stock_records
		SET available = available - $2, reserved = reserved - $2, updated_at = now()
		WHERE sku_id = $1 AND reserved >= $2 AND available >= $2
		RETURNING sku_id, available, reserved, reorder_point, updated_at`,
		sku, qty).Scan(&rec.SKU, &rec.Available, &rec.Reserved, &rec.ReorderPoint, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockRecord{}, domain.ErrInvalidState
	}
	if err != nil {
		return domain.StockRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StockRecord{}, err
	}
	return rec, nil
}

func (r *Repository) ReleaseReservation(ctx context.Context, id uuid.UUID) error {
	return r.releaseOne(ctx, id, domain.StateHeld)
}

func (r *Repository) releaseOne(ctx context.Context, id uuid.UUID, from domain.ReservationState) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var sku string
	var qty int
	err = tx.QueryRow(ctx, `
		UPDATE reservations SET state=$2
		WHERE id=$1 AND state=$3
		RETURNING sku_id, quantity`,
		id, domain.StateReleased, from).Scan(&sku, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		res, getErr := r.GetReservation(ctx, id)
		if getErr != nil {
			return getErr
		}
		if res.State == domain.StateReleased {
			return nil
		}
		return domain.ErrInvalidState
	}
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET reserved = reserved - $2, updated_at = now()
		WHERE sku_id = $1 AND reserved >= $2`, sku, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.pool.QueryRow(ctx, `SELECT id, sku_id, quantity, state, created_at, expires_at FROM reservations WHERE id=$1`, id).
		Scan(&res.ID, &res.SKU, &res.Quantity, &res.State, &res.CreatedAt, &res.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM reservations
		WHERE state=$1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT 100`, domain.StateHeld, now)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		// releaseOne only fires if the row is still held, so a commit that
		// lands between the scan and here wins and we skip the row.
		if err := r.releaseOne(ctx, id, domain.StateHeld); err != nil {
			if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrReservationNotFound) {
				continue
			}
			return released, err
		}
		released++
	}
	return released, nil
}
