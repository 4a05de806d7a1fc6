package cache

import (
	"context"
	"time"

	"enjoygifts/backend/internal/domain"
)

// SummaryCache caches the server-side report summary per store.
type SummaryCache interface {
	Get(ctx context.Context, storeID string) (*domain.Summary, bool, error)
	Set(ctx context.Context, storeID string, summary *domain.Summary, ttl time.Duration) error
}

// NoopSummaryCache is used when no Redis address is configured.
type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(context.Context, string) (*domain.Summary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(context.Context, string, *domain.Summary, time.Duration) error {
	return nil
}
