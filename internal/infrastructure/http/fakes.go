package httpserver

import (
	"context"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

var _ application.CacheRepo = (*memCacheRepo)(nil)
var _ application.PrimarySource = (*memPrimary)(nil)
var _ application.SecondarySource = (*memSecondary)(nil)

// memCacheRepo backs router tests without a database.
type memCacheRepo struct {
	entries map[string]domain.CacheEntry
}

func entryKey(class domain.AssetClass, symbol string) string {
	return string(class) + "/" + domain.NormalizeSymbol(symbol)
}

func (m *memCacheRepo) ReadValid(_ context.Context, class domain.AssetClass, symbol *string) ([]domain.CacheEntry, error) {
	now := time.Now().UTC()
	var out []domain.CacheEntry
	for _, e := range m.entries {
		if e.Class != class || !e.ValidAt(now) {
			continue
		}
		if symbol != nil && e.Symbol != domain.NormalizeSymbol(*symbol) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memCacheRepo) UpsertBatch(_ context.Context, entries []domain.CacheEntry) error {
	for _, e := range entries {
		m.entries[entryKey(e.Class, e.Symbol)] = e
	}
	return nil
}

func (m *memCacheRepo) Status(context.Context) (domain.CacheStatusReport, error) {
	now := time.Now().UTC()
	report := domain.CacheStatusReport{Counts: map[domain.AssetClass]int{}}
	for _, e := range m.entries {
		if !e.ValidAt(now) {
			continue
		}
		report.Counts[e.Class]++
		if report.Oldest.IsZero() || e.CachedAt.Before(report.Oldest) {
			report.Oldest = e.CachedAt
		}
		if e.CachedAt.After(report.Newest) {
			report.Newest = e.CachedAt
		}
	}
	return report, nil
}

func (m *memCacheRepo) Purge(context.Context) (int64, error) {
	now := time.Now().UTC()
	var n int64
	for k, e := range m.entries {
		if !e.ValidAt(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Seed inserts a valid entry directly, bypassing the refresh path.
func (m *memCacheRepo) Seed(class domain.AssetClass, symbol string, price float64, ttl time.Duration) {
	now := time.Now().UTC()
	m.entries[entryKey(class, symbol)] = domain.CacheEntry{
		Snapshot: domain.Snapshot{
			Class:  class,
			Symbol: domain.NormalizeSymbol(symbol),
			Name:   symbol,
			Price:  price,
			Meta:   domain.ProviderMeta{Provider: "seed"},
		},
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

type memPrimary struct{}

func (memPrimary) ListSymbols(context.Context, string) ([]string, error) {
	return []string{"AAPL"}, nil
}

func (memPrimary) FetchBatch(_ context.Context, symbols []string, maxCount int, _ int64) ([]domain.Snapshot, error) {
	out := make([]domain.Snapshot, 0, len(symbols))
	for _, s := range symbols {
		if len(out) >= maxCount {
			break
		}
		out = append(out, domain.Snapshot{
			Class:     domain.AssetClassEquity,
			Symbol:    domain.NormalizeSymbol(s),
			Name:      s,
			Price:     100,
			MarketCap: 2_000_000_000_000,
		})
	}
	return out, nil
}

type memSecondary struct{}

func (memSecondary) FetchTop(context.Context, int) ([]domain.Snapshot, error) {
	return nil, nil
}

type memQuota struct{}

func (memQuota) Status(c string) domain.QuotaStatus {
	return domain.QuotaStatus{Credential: c, MaxAllowed: 60, Remaining: 50, Available: true}
}

func NewInMemoryService() (*application.MarketDataService, *memCacheRepo) {
	cache := &memCacheRepo{entries: map[string]domain.CacheEntry{}}
	refresher := application.NewRefresher(cache, memPrimary{}, memSecondary{}, nil, application.RefresherConfig{
		CacheTTL:       time.Hour,
		ActiveSetSize:  10,
		CuratedSymbols: []string{"AAPL"},
		Exchange:       "US",
		SecondaryLimit: 5,
	})
	svc := application.NewMarketDataService(cache, refresher, memQuota{}, []string{"key-a"})
	return svc, cache
}
