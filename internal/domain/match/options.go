package match

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParallelism bounds concurrent candidate scoring.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithQueryTimeout bounds the description expansion of one query.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.queryTimeout = d
		}
	}
}
