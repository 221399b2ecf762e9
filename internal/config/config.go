package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	infraconfig "marketdata-service/internal/infrastructure/config"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	Storage     string
	DatabaseURL string
	// Providers
	Provider         string
	PrimaryAPIBase   string
	PrimaryAPIKeys   []string
	PrimaryExchange  string
	SecondaryAPIBase string
	RequestTimeout   time.Duration
	// Cache
	CacheTTL     time.Duration
	MinMarketCap int64
	// Refresh
	ActiveSetSize  int
	FastRefresh    time.Duration
	SlowRefresh    time.Duration
	CuratedSymbols []string
	// Quota
	QuotaMaxPerMinute int
	QuotaSafetyBuffer int
	QuotaCooldown     time.Duration
	// Redis (refresh lock)
	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func atoi64Def(s string, def int64) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:              getEnv("ENV", "local"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnv("PORT", infraconfig.DefaultHTTPPort),
		Storage:          getEnv("STORAGE", "pg"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Provider:         getEnv("PROVIDER", "fake"),
		PrimaryAPIBase:   getEnv("PRIMARY_API_BASE", "https://finnhub.io/api/v1"),
		PrimaryAPIKeys:   splitList(getEnv("PRIMARY_API_KEYS", "")),
		PrimaryExchange:  getEnv("PRIMARY_EXCHANGE", "US"),
		SecondaryAPIBase: getEnv("SECONDARY_API_BASE", "https://api.coingecko.com/api/v3"),
		RequestTimeout:   time.Duration(atoiDef(getEnv("REQUEST_TIMEOUT_MS", "10000"), 10000)) * time.Millisecond,

		CacheTTL:     time.Duration(atoiDef(getEnv("CACHE_TTL_MIN", "90"), 90)) * time.Minute,
		MinMarketCap: atoi64Def(getEnv("MIN_MARKET_CAP", "1000000000"), 1_000_000_000),

		ActiveSetSize:  atoiDef(getEnv("ACTIVE_SET_SIZE", "30"), 30),
		FastRefresh:    time.Duration(atoiDef(getEnv("FAST_REFRESH_MIN", "5"), 5)) * time.Minute,
		SlowRefresh:    time.Duration(atoiDef(getEnv("SLOW_REFRESH_MIN", "60"), 60)) * time.Minute,
		CuratedSymbols: splitList(getEnv("CURATED_SYMBOLS", "AAPL,MSFT,AMZN,GOOGL,NVDA,META,TSLA,JPM,V,WMT")),

		QuotaMaxPerMinute: atoiDef(getEnv("QUOTA_MAX_PER_MIN", "60"), 60),
		QuotaSafetyBuffer: atoiDef(getEnv("QUOTA_SAFETY_BUFFER", "10"), 10),
		QuotaCooldown:     time.Duration(atoiDef(getEnv("QUOTA_COOLDOWN_SEC", "120"), 120)) * time.Second,

		LockBackend:   getEnv("REFRESH_LOCK_BACKEND", "none"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       atoiDef(getEnv("REDIS_DB", "0"), 0),
		LockTTL:       time.Duration(atoiDef(getEnv("REFRESH_LOCK_TTL_MS", "240000"), 240000)) * time.Millisecond,
	}
}
