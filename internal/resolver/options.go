package resolver

import "log/slog"

// Option mutates cache configuration at construction time.
type Option func(*Cache)

// WithLogger injects a structured logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(cache *Cache) {
		if logger != nil {
			cache.logger = logger
		}
	}
}
