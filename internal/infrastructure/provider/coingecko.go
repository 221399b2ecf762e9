package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/httpx"
)

const coingeckoMarketsPath = "/coins/markets"

// CoinGeckoProvider pulls a ranked list of digital assets in one bulk
// call. No quota gating; the request timeout is the only bound.
type CoinGeckoProvider struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.SecondarySource = (*CoinGeckoProvider)(nil)

type cgMarket struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Image        string   `json:"image"`
	CurrentPrice float64  `json:"current_price"`
	MarketCap    float64  `json:"market_cap"`
	TotalVolume  float64  `json:"total_volume"`
	Change24h    float64  `json:"price_change_24h"`
	ChangePct24h float64  `json:"price_change_percentage_24h"`
	High24h      *float64 `json:"high_24h"`
	Low24h       *float64 `json:"low_24h"`
}

func (p *CoinGeckoProvider) client() *httpx.Client {
	if p.Client == nil {
		p.Client = &httpx.Client{HTTP: &http.Client{Timeout: 10 * time.Second}}
	}
	return p.Client
}

// FetchTop returns up to limit assets ordered by capitalization.
func (p *CoinGeckoProvider) FetchTop(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	if p.BaseURL == "" {
		return nil, errors.New("coingecko: missing configuration")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("coingecko: invalid base url: %w", err)
	}
	u.Path += coingeckoMarketsPath
	q := u.Query()
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: create request: %w", err)
	}

	var markets []cgMarket
	if err := p.client().DoJSON(ctx, req, &markets); err != nil {
		return nil, fmt.Errorf("coingecko: markets: %w", err)
	}

	out := make([]domain.Snapshot, 0, len(markets))
	for _, m := range markets {
		if m.Symbol == "" || m.CurrentPrice == 0 {
			continue
		}
		out = append(out, domain.Snapshot{
			Class:         domain.AssetClassDigital,
			Symbol:        domain.NormalizeSymbol(m.Symbol),
			Name:          m.Name,
			Price:         m.CurrentPrice,
			Change:        m.Change24h,
			ChangePercent: m.ChangePct24h,
			Volume:        int64(m.TotalVolume),
			MarketCap:     int64(m.MarketCap),
			High:          m.High24h,
			Low:           m.Low24h,
			Meta: domain.ProviderMeta{
				Provider: "coingecko",
				Logo:     m.Image,
			},
		})
	}
	return out, nil
}
