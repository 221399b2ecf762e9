package application

import (
	"context"
	"errors"
	"time"

	"marketdata-service/internal/domain"
)

var ErrRepo = errors.New("repo error")

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type fakeCacheRepo struct {
	entries   map[string]domain.CacheEntry
	upserts   int
	readErr   error
	upsertErr error
	now       func() time.Time
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string]domain.CacheEntry{}, now: func() time.Time { return time.Now().UTC() }}
}

func key(class domain.AssetClass, symbol string) string {
	return string(class) + "/" + domain.NormalizeSymbol(symbol)
}

func (f *fakeCacheRepo) ReadValid(_ context.Context, class domain.AssetClass, symbol *string) ([]domain.CacheEntry, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	now := f.now()
	var out []domain.CacheEntry
	for _, e := range f.entries {
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

func (f *fakeCacheRepo) UpsertBatch(_ context.Context, entries []domain.CacheEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	for _, e := range entries {
		f.entries[key(e.Class, e.Symbol)] = e
	}
	return nil
}

func (f *fakeCacheRepo) Status(context.Context) (domain.CacheStatusReport, error) {
	if f.readErr != nil {
		return domain.CacheStatusReport{}, f.readErr
	}
	now := f.now()
	report := domain.CacheStatusReport{Counts: map[domain.AssetClass]int{}}
	for _, e := range f.entries {
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

func (f *fakeCacheRepo) Purge(context.Context) (int64, error) {
	now := f.now()
	var n int64
	for k, e := range f.entries {
		if !e.ValidAt(now) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

type fakePrimary struct {
	symbols    []string
	listErr    error
	listCalls  int
	batches    [][]domain.Snapshot
	batchErrs  []error
	batchCalls [][]string
}

func (f *fakePrimary) ListSymbols(context.Context, string) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.symbols, nil
}

func (f *fakePrimary) FetchBatch(_ context.Context, symbols []string, _ int, _ int64) ([]domain.Snapshot, error) {
	i := len(f.batchCalls)
	f.batchCalls = append(f.batchCalls, symbols)
	var snaps []domain.Snapshot
	var err error
	if i < len(f.batches) {
		snaps = f.batches[i]
	}
	if i < len(f.batchErrs) {
		err = f.batchErrs[i]
	}
	return snaps, err
}

type fakeSecondary struct {
	snaps []domain.Snapshot
	err   error
	calls int
}

func (f *fakeSecondary) FetchTop(context.Context, int) ([]domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps, nil
}

type fakeQuota struct{ statuses map[string]domain.QuotaStatus }

func (f fakeQuota) Status(c string) domain.QuotaStatus { return f.statuses[c] }

type fakeLock struct {
	held     bool
	err      error
	acquires int
	releases int
}

func (f *fakeLock) TryAcquire(context.Context, string) (bool, error) {
	f.acquires++
	if f.err != nil {
		return false, f.err
	}
	return !f.held, nil
}

func (f *fakeLock) Release(context.Context, string) error {
	f.releases++
	return nil
}

func snap(class domain.AssetClass, symbol string, price float64, cap int64) domain.Snapshot {
	return domain.Snapshot{Class: class, Symbol: symbol, Name: symbol, Price: price, MarketCap: cap}
}
