package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically releases held reservations whose deadline passed,
// the defense against abandoned checkouts locking stock forever. The
// release is conditional on the row still being held, so a confirmation
// that commits first always wins the race.
type Sweeper struct {
	log      *slog.Logger
	store    StockStore
	interval time.Duration
}

func NewSweeper(log *slog.Logger, store StockStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{log: log, store: store, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reservation sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.store.ReleaseExpired(ctx, time.Now().UTC())
			if err != nil {
				s.log.Error("expiry sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired reservations released", "count", n)
			}
		}
	}
}
