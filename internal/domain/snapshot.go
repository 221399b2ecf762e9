package domain

import "time"

// ProviderMeta is opaque provider-specific detail carried alongside a
// snapshot and persisted as-is.
type ProviderMeta struct {
	Provider string `json:"provider"`
	Logo     string `json:"logo,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Snapshot is one normalized asset observation from a data provider.
type Snapshot struct {
	Class         AssetClass
	Symbol        string
	Name          string
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        int64
	MarketCap     int64
	PrevClose     *float64
	Open          *float64
	High          *float64
	Low           *float64
	Meta          ProviderMeta
}

// CacheEntry is a persisted snapshot with its freshness bounds.
// A row is valid iff ExpiresAt is after the observing clock's now.
type CacheEntry struct {
	Snapshot
	CachedAt  time.Time
	ExpiresAt time.Time
}

func (e CacheEntry) ValidAt(now time.Time) bool { return e.ExpiresAt.After(now) }

// CacheStatusReport summarizes valid rows per asset class.
type CacheStatusReport struct {
	Counts map[AssetClass]int
	Oldest time.Time
	Newest time.Time
}
