package domain

import "errors"

var (
	ErrUnsupportedClass    = errors.New("unsupported asset class")
	ErrProviderThrottled   = errors.New("provider throttled")
	ErrProviderUnavailable = errors.New("provider unavailable")
)
