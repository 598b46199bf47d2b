package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadware/fulfillment/internal/order/domain"
	"github.com/threadware/fulfillment/pkg/migrate"
	"github.com/threadware/fulfillment/test/integration"
)

func setupRepo(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	integration.Skip(t)
	ctx := context.Background()

	env, err := integration.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	log := slog.New(slog.DiscardHandler)
	migrateURL := strings.Replace(env.PGURL, "postgres://", "pgx5://", 1)
	require.NoError(t, migrate.Up(log, "file://../../../../migrations", migrateURL))

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewRepository(log, pool), pool
}

func sampleOrder(t *testing.T, pool *pgxpool.Pool) domain.Order {
	t.Helper()
	ctx := context.Background()

	// order_items references stock rows and reservations.
	_, err := pool.Exec(ctx, `
		INSERT INTO stock_records (sku_id, available, reserved, reorder_point, updated_at)
		VALUES ('FAB-TWILL-NAVY', 100, 0, 10, now())
		ON CONFLICT (sku_id) DO NOTHING`)
	require.NoError(t, err)

	resID := uuid.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO reservations (id, sku_id, quantity, state, created_at, expires_at)
		VALUES ($1, 'FAB-TWILL-NAVY', 10, 'held', now(), now() + interval '15 minutes')`, resID)
	require.NoError(t, err)

	return domain.NewOrder("acct_mill_42",
		[]domain.LineItem{{SKU: "FAB-TWILL-NAVY", Quantity: 10, UnitPriceCents: 1250, ReservationID: resID}},
		domain.Address{Line1: "12 Loom St", City: "Lowell", Region: "MA", PostalCode: "01850", Country: "US"},
		1031, 1500, "USD")
}

func TestRepository(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		o := sampleOrder(t, pool)
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, o.TotalCents, got.TotalCents)
		assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
		require.Len(t, got.Items, 1)
		assert.Equal(t, o.Items[0].ReservationID, got.Items[0].ReservationID)
	})

	t.Run("transition is conditional", func(t *testing.T) {
		o := sampleOrder(t, pool)
		require.NoError(t, repo.Create(ctx, o))

		applied, err := repo.Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.StatusPending},
			domain.StatusAwaitingPayment, "", "pi_123", "", nil)
		require.NoError(t, err)
		assert.True(t, applied)

		// A second attempt from the old status loses the conditional update.
		applied, err = repo.Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.StatusPending},
			domain.StatusAwaitingPayment, "", "pi_456", "", nil)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAwaitingPayment, got.Status)
		assert.Equal(t, "pi_123", got.PaymentIntentID)
	})

	t.Run("transition writes outbox event", func(t *testing.T) {
		o := sampleOrder(t, pool)
		require.NoError(t, repo.Create(ctx, o))
		_, err := repo.Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.StatusPending},
			domain.StatusAwaitingPayment, "", "pi_789", "", nil)
		require.NoError(t, err)

		payload, err := json.Marshal(domain.OrderPaid{OrderID: o.ID.String(), AccountID: o.AccountID, TotalCents: o.TotalCents, Currency: o.Currency})
		require.NoError(t, err)
		applied, err := repo.Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.StatusAwaitingPayment},
			domain.StatusPaid, "", "", "OrderPaid", payload)
		require.NoError(t, err)
		require.True(t, applied)

		var eventType string
		var stored []byte
		err = pool.QueryRow(ctx, `
			SELECT type, payload FROM outbox
			WHERE aggregate_type='order' AND aggregate_id=$1`, o.ID.String()).
			Scan(&eventType, &stored)
		require.NoError(t, err)
		assert.Equal(t, "OrderPaid", eventType)
		assert.JSONEq(t, string(payload), string(stored))
	})

	t.Run("failed transition writes no event", func(t *testing.T) {
		o := sampleOrder(t, pool)
		require.NoError(t, repo.Create(ctx, o))

		applied, err := repo.Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.StatusAwaitingPayment},
			domain.StatusPaid, "", "", "OrderPaid", []byte(`{}`))
		require.NoError(t, err)
		require.False(t, applied)

		var count int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM outbox WHERE aggregate_id=$1`, o.ID.String()).Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}
