package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"marketdata-service/internal/application"
	"marketdata-service/internal/config"
	"marketdata-service/internal/infrastructure/httpx"
	"marketdata-service/internal/infrastructure/logx"
	"marketdata-service/internal/infrastructure/pg"
	"marketdata-service/internal/infrastructure/provider"
	"marketdata-service/internal/infrastructure/quota"
	redisstore "marketdata-service/internal/infrastructure/redis"
)

type Repos struct {
	Cache application.CacheRepo
	DB    *pg.DB
}

type Providers struct {
	Primary     application.PrimarySource
	Secondary   application.SecondarySource
	Quota       application.QuotaReader
	Credentials []string
}

// BuildRepos connects to Postgres and runs migrations. STORAGE=pg is the
// only supported backend; the returned cleanup closes the pool.
func BuildRepos(ctx context.Context, cfg config.Config) (Repos, func(), error) {
	log := logx.L()

	switch cfg.Storage {
	case "pg":
		if cfg.DatabaseURL == "" {
			return Repos{}, func() {}, fmt.Errorf("DATABASE_URL is required for STORAGE=pg")
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return Repos{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return Repos{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return Repos{Cache: pg.NewCacheRepo(db), DB: db}, cleanup, nil
	default:
		return Repos{}, func() {}, fmt.Errorf("unknown storage %q; set STORAGE=pg", cfg.Storage)
	}
}

// BuildProviders assembles both market data sources. PROVIDER=fake keeps
// everything in process for local dev; anything else wires the real
// adapters behind the shared quota tracker.
func BuildProviders(cfg config.Config) (Providers, error) {
	if cfg.Provider == "fake" {
		tracker := quota.NewTracker(cfg.QuotaMaxPerMinute, cfg.QuotaSafetyBuffer, cfg.QuotaCooldown)
		return Providers{
			Primary:     &provider.FakePrimary{Price: 123.45},
			Secondary:   &provider.FakeSecondary{Price: 54321},
			Quota:       tracker,
			Credentials: []string{"fake"},
		}, nil
	}

	if len(cfg.PrimaryAPIKeys) == 0 {
		return Providers{}, fmt.Errorf("PRIMARY_API_KEYS is required for PROVIDER=%s", cfg.Provider)
	}

	tracker := quota.NewTracker(cfg.QuotaMaxPerMinute, cfg.QuotaSafetyBuffer, cfg.QuotaCooldown)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	// Pace the batch loop so the aggregate call rate across credentials
	// stays inside the effective per-minute budget.
	budget := (cfg.QuotaMaxPerMinute - cfg.QuotaSafetyBuffer) * len(cfg.PrimaryAPIKeys)
	if budget < 1 {
		budget = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(budget)), 1)

	primary := &provider.FinnhubProvider{
		BaseURL: cfg.PrimaryAPIBase,
		Keys:    cfg.PrimaryAPIKeys,
		Quota:   tracker,
		Client:  &httpx.Client{HTTP: httpClient},
		Limiter: limiter,
		Log:     logx.L(),
	}
	secondary := &provider.CoinGeckoProvider{
		BaseURL: cfg.SecondaryAPIBase,
		Client:  &httpx.Client{HTTP: httpClient},
	}
	return Providers{
		Primary:     primary,
		Secondary:   secondary,
		Quota:       tracker,
		Credentials: cfg.PrimaryAPIKeys,
	}, nil
}

// BuildLock returns the cross-process refresh lock. REFRESH_LOCK_BACKEND
// defaults to "none", which grants every acquisition.
func BuildLock(cfg config.Config) (application.RefreshLock, func(), error) {
	if cfg.LockBackend != "redis" {
		return application.NoopLock{}, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() { _ = rdb.Close() }
	return redisstore.NewLock(rdb, cfg.LockTTL), cleanup, nil
}

func BuildRefresher(cfg config.Config, repos Repos, prov Providers, lock application.RefreshLock) *application.Refresher {
	return application.NewRefresher(repos.Cache, prov.Primary, prov.Secondary, lock, application.RefresherConfig{
		CacheTTL:       cfg.CacheTTL,
		MinMarketCap:   cfg.MinMarketCap,
		ActiveSetSize:  cfg.ActiveSetSize,
		CuratedSymbols: cfg.CuratedSymbols,
		Exchange:       cfg.PrimaryExchange,
	}, application.WithRefresherLogger(logx.L()))
}

func BuildService(repos Repos, prov Providers, refresher *application.Refresher) *application.MarketDataService {
	return application.NewMarketDataService(repos.Cache, refresher, prov.Quota, prov.Credentials)
}
