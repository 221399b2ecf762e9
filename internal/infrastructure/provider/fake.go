package provider

import (
	"context"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

var _ application.PrimarySource = (*FakePrimary)(nil)
var _ application.SecondarySource = (*FakeSecondary)(nil)

// FakePrimary serves a fixed snapshot per symbol; useful for local dev
// without provider credentials.
type FakePrimary struct {
	Price float64
}

func (f *FakePrimary) ListSymbols(context.Context, string) ([]string, error) {
	return []string{"AAPL", "MSFT", "NVDA"}, nil
}

func (f *FakePrimary) FetchBatch(_ context.Context, symbols []string, maxCount int, _ int64) ([]domain.Snapshot, error) {
	out := make([]domain.Snapshot, 0, len(symbols))
	for _, s := range symbols {
		if len(out) >= maxCount {
			break
		}
		out = append(out, domain.Snapshot{
			Class:     domain.AssetClassEquity,
			Symbol:    domain.NormalizeSymbol(s),
			Name:      s,
			Price:     f.Price,
			MarketCap: 2_000_000_000_000,
			Meta:      domain.ProviderMeta{Provider: "fake"},
		})
	}
	return out, nil
}

type FakeSecondary struct {
	Price float64
}

func (f *FakeSecondary) FetchTop(_ context.Context, limit int) ([]domain.Snapshot, error) {
	symbols := []string{"BTC", "ETH", "SOL"}
	if limit < len(symbols) {
		symbols = symbols[:limit]
	}
	out := make([]domain.Snapshot, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, domain.Snapshot{
			Class:     domain.AssetClassDigital,
			Symbol:    s,
			Name:      s,
			Price:     f.Price,
			MarketCap: 1_000_000_000_000,
			Meta:      domain.ProviderMeta{Provider: "fake"},
		})
	}
	return out, nil
}
