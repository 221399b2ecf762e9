package application

import (
	"context"

	"marketdata-service/internal/domain"
)

type CacheRepo interface {
	ReadValid(ctx context.Context, class domain.AssetClass, symbol *string) ([]domain.CacheEntry, error)
	UpsertBatch(ctx context.Context, entries []domain.CacheEntry) error
	Status(ctx context.Context) (domain.CacheStatusReport, error)
	Purge(ctx context.Context) (int64, error)
}

// PrimarySource is the rate-limited per-symbol provider. ListSymbols
// failures propagate; FetchBatch drops failing symbols and may return an
// empty (degraded) result without error.
type PrimarySource interface {
	ListSymbols(ctx context.Context, exchange string) ([]string, error)
	FetchBatch(ctx context.Context, symbols []string, maxCount int, minMarketCap int64) ([]domain.Snapshot, error)
}

// SecondarySource is the unthrottled bulk provider for ranked assets.
type SecondarySource interface {
	FetchTop(ctx context.Context, limit int) ([]domain.Snapshot, error)
}

// QuotaReader exposes per-credential quota state for observability.
type QuotaReader interface {
	Status(credential string) domain.QuotaStatus
}

// RefreshLock serializes refresh cycles across processes. A held lock
// means another cycle is in flight and this one can be skipped.
type RefreshLock interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NoopLock always grants the lock; used when Redis is disabled.
type NoopLock struct{}

func (NoopLock) TryAcquire(context.Context, string) (bool, error) { return true, nil }
func (NoopLock) Release(context.Context, string) error            { return nil }
