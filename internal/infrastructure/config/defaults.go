package config

import "time"

const (
	DefaultHTTPPort        = "8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultPGMaxConns      = 5
	DefaultPGMinConns      = 1

	// Quota window is fixed by the provider contract (calls per minute).
	QuotaWindow = time.Minute
	// Margin added after the oldest bucket leaves the window before retrying.
	QuotaRetryMargin = 500 * time.Millisecond
)
