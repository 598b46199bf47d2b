package application

import (
	"context"
	"log/slog"

	"github.com/threadware/fulfillment/internal/inventory/domain"
)

// Ledger is the read/admin surface over stock counters. All business
// mutation goes through the Manager; the ledger only reports sellable
// quantity and applies administrative corrections.
type Ledger struct {
	log   *slog.Logger
	store StockStore
}

func NewLedger(log *slog.Logger, store StockStore) *Ledger {
	return &Ledger{log: log, store: store}
}

func (l *Ledger) Sellable(ctx context.Context, sku string) (int, error) {
	rec, err := l.store.GetStock(ctx, sku)
	if err != nil {
		return 0, err
	}
	return rec.Sellable(), nil
}

func (l *Ledger) AdjustAvailable(ctx context.Context, sku string, delta int) error {
	if err := l.store.AdjustAvailable(ctx, sku, delta); err != nil {
		return err
	}
	l.log.Info("stock adjusted", "sku", sku, "delta", delta)
	return nil
}

func (l *Ledger) GetStock(ctx context.Context, sku string) (domain.StockRecord, error) {
	return l.store.GetStock(ctx, sku)
}
