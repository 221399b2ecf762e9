package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketdata-service/internal/domain"
)

type CacheRepo struct{ db *DB }

func NewCacheRepo(db *DB) *CacheRepo { return &CacheRepo{db: db} }

const readValidQuery = `
    SELECT asset_class, symbol, display_name,
           price::float8, change::float8, change_percent::float8,
           volume, market_cap,
           previous_close::float8, open::float8, high::float8, low::float8,
           provider_metadata, cached_at, expires_at
      FROM cache_entries
     WHERE expires_at > now() AND asset_class = $1`

// ReadValid returns unexpired rows for a class, freshest first. The expiry
// comparison runs server-side so a stale row can never slip through.
func (r *CacheRepo) ReadValid(ctx context.Context, class domain.AssetClass, symbol *string) ([]domain.CacheEntry, error) {
	q := readValidQuery
	args := []any{string(class)}
	if symbol != nil {
		q += ` AND symbol = $2`
		args = append(args, domain.NormalizeSymbol(*symbol))
	}
	q += ` ORDER BY cached_at DESC`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	defer rows.Close()

	var out []domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		var meta []byte
		if err := rows.Scan(
			&e.Class, &e.Symbol, &e.Name,
			&e.Price, &e.Change, &e.ChangePercent,
			&e.Volume, &e.MarketCap,
			&e.PrevClose, &e.Open, &e.High, &e.Low,
			&meta, &e.CachedAt, &e.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const upsertQuery = `
    INSERT INTO cache_entries (
        asset_class, symbol, display_name, price, change, change_percent,
        volume, market_cap, previous_close, open, high, low,
        provider_metadata, cached_at, expires_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
    ON CONFLICT (asset_class, symbol) DO UPDATE SET
        display_name      = EXCLUDED.display_name,
        price             = EXCLUDED.price,
        change            = EXCLUDED.change,
        change_percent    = EXCLUDED.change_percent,
        volume            = EXCLUDED.volume,
        market_cap        = EXCLUDED.market_cap,
        previous_close    = EXCLUDED.previous_close,
        open              = EXCLUDED.open,
        high              = EXCLUDED.high,
        low               = EXCLUDED.low,
        provider_metadata = EXCLUDED.provider_metadata,
        cached_at         = EXCLUDED.cached_at,
        expires_at        = EXCLUDED.expires_at`

// UpsertBatch writes all entries inside one transaction; either the whole
// batch commits or prior cache contents stay untouched.
func (r *CacheRepo) UpsertBatch(ctx context.Context, entries []domain.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		meta, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", e.Symbol, err)
		}
		if _, err := tx.Exec(ctx, upsertQuery,
			string(e.Class), domain.NormalizeSymbol(e.Symbol), e.Name,
			e.Price, e.Change, e.ChangePercent,
			e.Volume, e.MarketCap,
			e.PrevClose, e.Open, e.High, e.Low,
			meta, e.CachedAt, e.ExpiresAt,
		); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", e.Class, e.Symbol, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *CacheRepo) Status(ctx context.Context) (domain.CacheStatusReport, error) {
	const q = `
        SELECT asset_class, COUNT(*), MIN(cached_at), MAX(cached_at)
          FROM cache_entries
         WHERE expires_at > now()
         GROUP BY asset_class`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return domain.CacheStatusReport{}, fmt.Errorf("cache status: %w", err)
	}
	defer rows.Close()

	report := domain.CacheStatusReport{Counts: map[domain.AssetClass]int{}}
	for rows.Next() {
		var class domain.AssetClass
		var count int
		var minAt, maxAt time.Time
		if err := rows.Scan(&class, &count, &minAt, &maxAt); err != nil {
			return domain.CacheStatusReport{}, fmt.Errorf("scan status row: %w", err)
		}
		report.Counts[class] = count
		if report.Oldest.IsZero() || minAt.Before(report.Oldest) {
			report.Oldest = minAt
		}
		if maxAt.After(report.Newest) {
			report.Newest = maxAt
		}
	}
	return report, rows.Err()
}

// Purge removes rows past expiry. Reads exclude them regardless; this just
// keeps the table from growing without bound.
func (r *CacheRepo) Purge(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
