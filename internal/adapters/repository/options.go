package repository

import "time"

type boltOptions struct {
	timeout time.Duration
}

// Option applies a configuration option to OpenBoltStore.
type Option func(*boltOptions)

// WithOpenTimeout bounds how long OpenBoltStore waits for the file lock.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *boltOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}
