package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/httpx"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	finnhubSymbolPath  = "/stock/symbol"
	finnhubQuotePath   = "/quote"
	finnhubProfilePath = "/stock/profile2"

	// Every snapshot costs a quote call plus a profile call.
	callsPerSymbol = 2
)

// QuotaGate is the admission-control surface the adapter needs; the
// quota tracker satisfies it.
type QuotaGate interface {
	Reserve(ctx context.Context, credential string) error
	Record(credential string, n int)
	ReportThrottled(credential string)
	Remaining(credential string) int
}

// FinnhubProvider fetches per-symbol quote+profile pairs from the
// rate-limited primary feed. Every provider call is gated through the
// quota tracker and counted individually.
type FinnhubProvider struct {
	BaseURL string
	Keys    []string
	Quota   QuotaGate
	Client  *httpx.Client
	// Limiter paces symbols so the aggregate call rate stays under the
	// per-minute budget between batches.
	Limiter *rate.Limiter
	Log     *zap.Logger

	// pause is taken when the window is nearly exhausted; overridable
	// in tests.
	pause func(ctx context.Context, d time.Duration) error
}

var _ application.PrimarySource = (*FinnhubProvider)(nil)

type fhSymbol struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type fhQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Volume        float64 `json:"v"`
}

type fhProfile struct {
	Name      string  `json:"name"`
	MarketCap float64 `json:"marketCapitalization"` // reported in millions
	Industry  string  `json:"finnhubIndustry"`
	Logo      string  `json:"logo"`
}

func (p *FinnhubProvider) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *FinnhubProvider) client() *httpx.Client {
	if p.Client == nil {
		p.Client = &httpx.Client{HTTP: &http.Client{Timeout: 10 * time.Second}}
	}
	return p.Client
}

func (p *FinnhubProvider) endpoint(path string, q url.Values) (string, error) {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("finnhub: invalid base url: %w", err)
	}
	u.Path += path
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// call runs one gated provider call: reserve, request, record. The call
// attempt counts against the window whether it succeeded or not, and a
// throttling response flips the credential into cooldown.
func (p *FinnhubProvider) call(ctx context.Context, credential, path string, q url.Values, out any) error {
	if err := p.Quota.Reserve(ctx, credential); err != nil {
		return err
	}
	q.Set("token", credential)
	target, err := p.endpoint(path, q)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("finnhub: create request: %w", err)
	}
	err = p.client().DoJSON(ctx, req, out)
	p.Quota.Record(credential, 1)
	if errors.Is(err, domain.ErrProviderThrottled) {
		p.Quota.ReportThrottled(credential)
	}
	return err
}

// ListSymbols returns tradeable tickers for an exchange, keeping common
// stock with a non-empty description (ADRs, warrants and blank listings
// are dropped). A failure here fails the whole operation upward.
func (p *FinnhubProvider) ListSymbols(ctx context.Context, exchange string) ([]string, error) {
	if p.BaseURL == "" || len(p.Keys) == 0 {
		return nil, errors.New("finnhub: missing configuration")
	}
	var listed []fhSymbol
	q := url.Values{}
	q.Set("exchange", exchange)
	if err := p.call(ctx, p.Keys[0], finnhubSymbolPath, q, &listed); err != nil {
		return nil, fmt.Errorf("finnhub: list symbols: %w", err)
	}
	out := make([]string, 0, len(listed))
	for _, s := range listed {
		if s.Type != "Common Stock" || s.Description == "" {
			continue
		}
		out = append(out, domain.NormalizeSymbol(s.Symbol))
	}
	return out, nil
}

// FetchOne builds a snapshot from a quote and a profile call. Either
// call failing fails this symbol only.
func (p *FinnhubProvider) FetchOne(ctx context.Context, credential, symbol string) (domain.Snapshot, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var quote fhQuote
	q := url.Values{}
	q.Set("symbol", symbol)
	if err := p.call(ctx, credential, finnhubQuotePath, q, &quote); err != nil {
		return domain.Snapshot{}, fmt.Errorf("finnhub: quote %s: %w", symbol, err)
	}
	if quote.Current == 0 {
		return domain.Snapshot{}, fmt.Errorf("finnhub: quote %s: %w", symbol, domain.ErrProviderUnavailable)
	}

	var profile fhProfile
	q = url.Values{}
	q.Set("symbol", symbol)
	if err := p.call(ctx, credential, finnhubProfilePath, q, &profile); err != nil {
		return domain.Snapshot{}, fmt.Errorf("finnhub: profile %s: %w", symbol, err)
	}

	name := profile.Name
	if name == "" {
		name = symbol
	}
	return domain.Snapshot{
		Class:         domain.AssetClassEquity,
		Symbol:        symbol,
		Name:          name,
		Price:         quote.Current,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        int64(quote.Volume),
		MarketCap:     int64(profile.MarketCap * 1e6),
		PrevClose:     optional(quote.PrevClose),
		Open:          optional(quote.Open),
		High:          optional(quote.High),
		Low:           optional(quote.Low),
		Meta: domain.ProviderMeta{
			Provider: "finnhub",
			Logo:     profile.Logo,
			Industry: profile.Industry,
		},
	}, nil
}

// FetchBatch walks symbols sequentially, pacing against the per-minute
// budget. Per-symbol failures are logged and skipped; an empty result
// is a degraded outcome, not an error.
func (p *FinnhubProvider) FetchBatch(ctx context.Context, symbols []string, maxCount int, minMarketCap int64) ([]domain.Snapshot, error) {
	if len(p.Keys) == 0 {
		return nil, errors.New("finnhub: missing credentials")
	}
	log := p.logger()
	wait := p.pause
	if wait == nil {
		wait = sleepCtx
	}

	out := make([]domain.Snapshot, 0, maxCount)
	for i, symbol := range symbols {
		if len(out) >= maxCount {
			break
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		credential := p.Keys[i%len(p.Keys)]

		snap, err := p.FetchOne(ctx, credential, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("symbol_fetch_failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if snap.MarketCap < minMarketCap {
			continue
		}
		out = append(out, snap)

		// Breathe when the window is nearly spent; Reserve would block
		// anyway, this just spreads the tail instead of slamming into it.
		if p.Quota.Remaining(credential) < callsPerSymbol*2 {
			if err := wait(ctx, time.Second); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MarketCap > out[j].MarketCap })
	return out, nil
}

func optional(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
