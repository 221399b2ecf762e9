package application

import (
	"context"
	"fmt"

	"marketdata-service/internal/domain"
)

// MarketDataService is the narrow surface consumers see: cached reads,
// cache status, quota observability, and the operator refresh trigger.
// It never hands provider failures to readers; the worst a reader can
// observe is staleness or an empty slice.
type MarketDataService struct {
	cache       CacheRepo
	refresher   *Refresher
	quota       QuotaReader
	credentials []string
	clock       Clock
}

type Option func(*MarketDataService)

func WithClock(c Clock) Option { return func(s *MarketDataService) { s.clock = c } }

func NewMarketDataService(cache CacheRepo, refresher *Refresher, quota QuotaReader, credentials []string, opts ...Option) *MarketDataService {
	s := &MarketDataService{
		cache:       cache,
		refresher:   refresher,
		quota:       quota,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	return s
}

// GetCached returns valid cache rows for a class, optionally narrowed to
// one symbol. No data is not an error: consumers get an empty slice.
func (s *MarketDataService) GetCached(ctx context.Context, class domain.AssetClass, symbol *string) ([]domain.CacheEntry, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedClass, class)
	}
	entries, err := s.cache.ReadValid(ctx, class, symbol)
	if err != nil {
		return nil, fmt.Errorf("read cached: %w", err)
	}
	if entries == nil {
		entries = []domain.CacheEntry{}
	}
	return entries, nil
}

func (s *MarketDataService) CacheStatus(ctx context.Context) (domain.CacheStatusReport, error) {
	return s.cache.Status(ctx)
}

// TriggerRefresh runs a refresh cycle synchronously. Safe to call while
// scheduled cycles run; upserts are idempotent and cycles serialize via
// the refresh lock.
func (s *MarketDataService) TriggerRefresh(ctx context.Context, forceFull bool) error {
	return s.refresher.Refresh(ctx, forceFull)
}

func (s *MarketDataService) QuotaStatus() []domain.QuotaStatus {
	out := make([]domain.QuotaStatus, 0, len(s.credentials))
	for _, c := range s.credentials {
		out = append(out, s.quota.Status(c))
	}
	return out
}
