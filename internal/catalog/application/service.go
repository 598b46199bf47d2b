package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/threadware/fulfillment/internal/catalog/domain"
)

type Source interface {
	GetSKU(ctx context.Context, id string) (domain.SKU, error)
}

type Cache interface {
	Get(ctx context.Context, id string) (domain.SKU, error)
	Set(ctx context.Context, sku domain.SKU) error
}

var ErrCacheMiss = errors.New("cache miss")

// Service is a read-through cached lookup over the authoritative catalog.
// A cache failure degrades to the source, never to an error.
type Service struct {
	log    *slog.Logger
	source Source
	cache  Cache
}

func NewService(log *slog.Logger, source Source, cache Cache) *Service {
	return &Service{log: log, source: source, cache: cache}
}

func (s *Service) GetSKU(ctx context.Context, id string) (domain.SKU, error) {
	if s.cache != nil {
		sku, err := s.cache.Get(ctx, id)
		if err == nil {
			return sku, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("catalog cache read failed", "sku", id, "err", err)
		}
	}

	sku, err := s.source.GetSKU(ctx, id)
	if err != nil {
		return domain.SKU{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, sku); err != nil {
			s.log.Warn("catalog cache write failed", "sku", id, "err", err)
		}
	}
	return sku, nil
}
