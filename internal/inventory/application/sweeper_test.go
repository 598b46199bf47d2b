package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadware/fulfillment/internal/inventory/domain"
	"github.com/threadware/fulfillment/internal/inventory/infrastructure/memory"
)

func TestSweeperReleasesAbandonedHolds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	store.Seed("cotton-white", 100, 0)

	res, err := store.ReserveStock(ctx, "cotton-white", 10, -time.Second)
	require.NoError(t, err)

	sweeper := NewSweeper(discard(), store, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		_ = sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := store.GetReservation(context.Background(), res.ID)
		return err == nil && got.State == domain.StateReleased
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	rec, err := store.GetStock(context.Background(), "cotton-white")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Reserved)
}

func TestSweeperLeavesLiveHoldsAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	store.Seed("cotton-white", 100, 0)

	res, err := store.ReserveStock(ctx, "cotton-white", 10, time.Hour)
	require.NoError(t, err)

	sweeper := NewSweeper(discard(), store, 10*time.Millisecond)
	go func() { _ = sweeper.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	got, err := store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateHeld, got.State)
}
