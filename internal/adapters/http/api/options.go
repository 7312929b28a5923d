package api

import "github.com/okian/devmatch/pkg/logger"

const (
	defaultSearchLimit = 20
	defaultMaxLimit    = 100
	maxBodyBytes       = 8 << 20
)

type serverConfig struct {
	defaultLimit int
	maxLimit     int
	apiToken     string
	logger       logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

// WithSearchLimits sets the limit used when a request omits one and the
// largest limit a request may ask for.
func WithSearchLimits(defaultLimit, maxLimit int) Option {
	return func(c *serverConfig) {
		if maxLimit > 0 {
			c.maxLimit = maxLimit
		}
		if defaultLimit > 0 {
			c.defaultLimit = defaultLimit
		}
	}
}

// WithAPIToken sets the bearer token guarding agent and admin routes.
// Without one those routes always answer 401.
func WithAPIToken(token string) Option {
	return func(c *serverConfig) {
		c.apiToken = token
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
