package application

import (
	"context"
	"fmt"
	"time"

	"marketdata-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const refreshLockKey = "marketdata:refresh"

// fetchOutcome tags the result of one fallback strategy so the cascade
// is an explicit state machine rather than nested error handling.
type fetchOutcome int

const (
	outcomeData fetchOutcome = iota
	outcomeEmpty
	outcomeFailed
)

type fetchStrategy struct {
	name string
	run  func(ctx context.Context, size int) ([]domain.Snapshot, error)
}

// RefresherConfig carries the tunables of one refresh cycle.
type RefresherConfig struct {
	CacheTTL       time.Duration
	MinMarketCap   int64
	ActiveSetSize  int
	CuratedSymbols []string
	Exchange       string
	SecondaryLimit int
}

// Refresher runs one refresh cycle: primary fetch with a two-tier
// fallback, an independent secondary fetch, and a purge. Provider
// failures degrade freshness only; the last good cache rows always
// survive a failed cycle.
type Refresher struct {
	cache     CacheRepo
	primary   PrimarySource
	secondary SecondarySource
	lock      RefreshLock
	cfg       RefresherConfig
	clock     Clock
	log       *zap.Logger
}

type RefresherOption func(*Refresher)

func WithRefresherClock(c Clock) RefresherOption { return func(r *Refresher) { r.clock = c } }
func WithRefresherLogger(l *zap.Logger) RefresherOption {
	return func(r *Refresher) { r.log = l }
}

func NewRefresher(cache CacheRepo, primary PrimarySource, secondary SecondarySource, lock RefreshLock, cfg RefresherConfig, opts ...RefresherOption) *Refresher {
	if cfg.ActiveSetSize <= 0 {
		cfg.ActiveSetSize = 30
	}
	if cfg.SecondaryLimit <= 0 {
		cfg.SecondaryLimit = 25
	}
	if lock == nil {
		lock = NoopLock{}
	}
	r := &Refresher{
		cache:     cache,
		primary:   primary,
		secondary: secondary,
		lock:      lock,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = realClock{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Refresh executes one cycle. forceFull requests the whole active set;
// the fast cycle asks for a smaller slice through the same path. Only
// storage failures are returned; provider outages are absorbed by the
// fallback chain.
func (r *Refresher) Refresh(ctx context.Context, forceFull bool) error {
	acquired, err := r.lock.TryAcquire(ctx, refreshLockKey)
	if err != nil {
		// A broken lock store must not stop refreshes; upserts are
		// idempotent so an unserialized cycle is harmless.
		r.log.Warn("refresh_lock_error", zap.Error(err))
	} else if !acquired {
		r.log.Info("refresh_skipped_lock_held")
		return nil
	} else {
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), refreshLockKey); err != nil {
				r.log.Warn("refresh_unlock_error", zap.Error(err))
			}
		}()
	}

	size := r.cfg.ActiveSetSize
	if !forceFull {
		if size = r.cfg.ActiveSetSize / 3; size < 5 {
			size = 5
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.refreshPrimary(gctx, size) })
	g.Go(func() error { return r.refreshSecondary(gctx) })
	err = g.Wait()

	if n, perr := r.cache.Purge(ctx); perr != nil {
		r.log.Warn("purge_failed", zap.Error(perr))
	} else if n > 0 {
		r.log.Info("purge_done", zap.Int64("removed", n))
	}
	return err
}

func (r *Refresher) refreshPrimary(ctx context.Context, size int) error {
	strategies := []fetchStrategy{
		{name: "active_set", run: r.fetchActiveSet},
		{name: "curated_set", run: r.fetchCuratedSet},
	}

	for _, s := range strategies {
		snaps, err := s.run(ctx, size)
		outcome := outcomeData
		switch {
		case err != nil:
			outcome = outcomeFailed
			r.log.Warn("primary_fetch_failed", zap.String("strategy", s.name), zap.Error(err))
		case len(snaps) == 0:
			outcome = outcomeEmpty
			r.log.Warn("primary_fetch_empty", zap.String("strategy", s.name))
		}
		if outcome != outcomeData {
			continue
		}
		if err := r.cache.UpsertBatch(ctx, r.toEntries(snaps)); err != nil {
			return fmt.Errorf("upsert primary batch: %w", err)
		}
		r.log.Info("primary_refresh_done", zap.String("strategy", s.name), zap.Int("entries", len(snaps)))
		return nil
	}

	// Final tier: leave existing rows alone; reads keep serving the last
	// good snapshot until it expires on its own.
	r.log.Warn("primary_refresh_exhausted_cache_preserved")
	return nil
}

func (r *Refresher) fetchActiveSet(ctx context.Context, size int) ([]domain.Snapshot, error) {
	symbols, err := r.primary.ListSymbols(ctx, r.cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return r.primary.FetchBatch(ctx, symbols, size, r.cfg.MinMarketCap)
}

func (r *Refresher) fetchCuratedSet(ctx context.Context, size int) ([]domain.Snapshot, error) {
	if len(r.cfg.CuratedSymbols) == 0 {
		return nil, nil
	}
	// No capitalization floor here: the curated list is already vetted
	// and this tier runs when data is scarce.
	return r.primary.FetchBatch(ctx, r.cfg.CuratedSymbols, len(r.cfg.CuratedSymbols), 0)
}

func (r *Refresher) refreshSecondary(ctx context.Context) error {
	snaps, err := r.secondary.FetchTop(ctx, r.cfg.SecondaryLimit)
	if err != nil {
		// Isolated by design: a secondary outage never taints the
		// primary leg or the cycle result.
		r.log.Warn("secondary_fetch_failed", zap.Error(err))
		return nil
	}
	if len(snaps) == 0 {
		r.log.Warn("secondary_fetch_empty")
		return nil
	}
	if err := r.cache.UpsertBatch(ctx, r.toEntries(snaps)); err != nil {
		return fmt.Errorf("upsert secondary batch: %w", err)
	}
	r.log.Info("secondary_refresh_done", zap.Int("entries", len(snaps)))
	return nil
}

// toEntries stamps snapshots with freshness bounds and drops duplicate
// (class, symbol) keys so a cycle writes each entry at most once.
func (r *Refresher) toEntries(snaps []domain.Snapshot) []domain.CacheEntry {
	now := r.clock.Now()
	seen := make(map[string]struct{}, len(snaps))
	out := make([]domain.CacheEntry, 0, len(snaps))
	for _, s := range snaps {
		s.Symbol = domain.NormalizeSymbol(s.Symbol)
		key := string(s.Class) + "/" + s.Symbol
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.CacheEntry{
			Snapshot:  s,
			CachedAt:  now,
			ExpiresAt: now.Add(r.cfg.CacheTTL),
		})
	}
	return out
}
