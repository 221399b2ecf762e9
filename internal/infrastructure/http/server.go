package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

type Server struct {
	svc   *application.MarketDataService
	ready func(ctx context.Context) error
}

func NewServer(svc *application.MarketDataService) *Server { return &Server{svc: svc} }

// SetReadyCheck installs the probe used by /readyz (typically a db ping).
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ready = fn }

type cacheEntryJSON struct {
	AssetClass    string              `json:"asset_class"`
	Symbol        string              `json:"symbol"`
	DisplayName   string              `json:"display_name"`
	Price         float64             `json:"price"`
	Change        float64             `json:"change"`
	ChangePercent float64             `json:"change_percent"`
	Volume        int64               `json:"volume"`
	MarketCap     int64               `json:"market_cap"`
	PreviousClose *float64            `json:"previous_close,omitempty"`
	Open          *float64            `json:"open,omitempty"`
	High          *float64            `json:"high,omitempty"`
	Low           *float64            `json:"low,omitempty"`
	Metadata      domain.ProviderMeta `json:"provider_metadata"`
	CachedAt      time.Time           `json:"cached_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

func toEntryJSON(e domain.CacheEntry) cacheEntryJSON {
	return cacheEntryJSON{
		AssetClass:    string(e.Class),
		Symbol:        e.Symbol,
		DisplayName:   e.Name,
		Price:         e.Price,
		Change:        e.Change,
		ChangePercent: e.ChangePercent,
		Volume:        e.Volume,
		MarketCap:     e.MarketCap,
		PreviousClose: e.PrevClose,
		Open:          e.Open,
		High:          e.High,
		Low:           e.Low,
		Metadata:      e.Meta,
		CachedAt:      e.CachedAt,
		ExpiresAt:     e.ExpiresAt,
	}
}

func (s *Server) GetPrices(w http.ResponseWriter, r *http.Request) {
	class := domain.AssetClass(r.URL.Query().Get("class"))
	var symbol *string
	if v := r.URL.Query().Get("symbol"); v != "" {
		symbol = &v
	}

	entries, err := s.svc.GetCached(r.Context(), class, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedClass) {
			writeError(w, http.StatusBadRequest, "unsupported asset class")
			return
		}
		internalError(w)
		return
	}

	out := make([]cacheEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type cacheStatusJSON struct {
	Counts map[string]int `json:"counts"`
	Oldest *time.Time     `json:"oldest,omitempty"`
	Newest *time.Time     `json:"newest,omitempty"`
}

func (s *Server) GetCacheStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.CacheStatus(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	out := cacheStatusJSON{Counts: map[string]int{}}
	for class, n := range report.Counts {
		out.Counts[string(class)] = n
	}
	if !report.Oldest.IsZero() {
		out.Oldest = &report.Oldest
	}
	if !report.Newest.IsZero() {
		out.Newest = &report.Newest
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	forceFull := r.URL.Query().Get("full") == "true"
	if err := s.svc.TriggerRefresh(r.Context(), forceFull); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"refreshed": true, "full": forceFull})
}

type quotaStatusJSON struct {
	Credential  string `json:"credential"`
	RecentCalls int    `json:"recent_calls"`
	MaxAllowed  int    `json:"max_allowed"`
	Remaining   int    `json:"remaining"`
	Available   bool   `json:"available"`
}

func (s *Server) GetQuota(w http.ResponseWriter, _ *http.Request) {
	statuses := s.svc.QuotaStatus()
	out := make([]quotaStatusJSON, 0, len(statuses))
	for _, q := range statuses {
		out = append(out, quotaStatusJSON{
			Credential:  q.Credential,
			RecentCalls: q.RecentCalls,
			MaxAllowed:  q.MaxAllowed,
			Remaining:   q.Remaining,
			Available:   q.Available,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
