package client

import (
	"log/slog"
	"time"

	"github.com/satishbabariya/litesql/internal/core/retry"
	"github.com/satishbabariya/litesql/internal/core/transaction"
)

// Config contains all client configuration options.
type Config struct {
	// PoolSize is the number of engine connections.
	// Default: 4
	PoolSize int

	// MinConnections are opened when the client starts.
	// Default: 1
	MinConnections int

	// CheckoutTimeout bounds the wait for a free connection.
	// Default: 5 seconds
	CheckoutTimeout time.Duration

	// HealthCheckInterval is how often idle connections are pinged; 0 disables it.
	// Default: 1 minute
	HealthCheckInterval time.Duration

	// Retry is the busy-retry policy for statements inside a transaction and for
	// transaction control statements.
	Retry *retry.Config

	// Behavior is the locking mode of outermost transactions.
	// Default: plain BEGIN
	Behavior transaction.Behavior

	// EngineOptions are passed to the engine at open time (encryption_key, auth_token,
	// sync_url, busy_timeout_ms).
	EngineOptions map[string]interface{}

	// Logger is the logger instance. Default: the process logger.
	Logger *slog.Logger

	// LogQueries logs every statement at debug level when true.
	// Default: false
	LogQueries bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:            4,
		MinConnections:      1,
		CheckoutTimeout:     5 * time.Second,
		HealthCheckInterval: time.Minute,
		Retry:               retry.DefaultConfig(),
		Behavior:            transaction.Default,
		LogQueries:          false,
	}
}

// Option is a function that configures the client.
type Option func(*Config)

// WithPoolSize sets the number of connections.
func WithPoolSize(n int) Option {
	return func(c *Config) {
		c.PoolSize = n
	}
}

// WithMinConnections sets how many connections are opened up front.
func WithMinConnections(n int) Option {
	return func(c *Config) {
		c.MinConnections = n
	}
}

// WithCheckoutTimeout sets the checkout timeout.
func WithCheckoutTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CheckoutTimeout = d
	}
}

// WithHealthCheckInterval sets the idle connection ping interval.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(c *Config) {
		c.HealthCheckInterval = d
	}
}

// WithRetry sets the busy-retry policy.
func WithRetry(opts ...retry.Option) Option {
	return func(c *Config) {
		c.Retry = retry.Apply(c.Retry, opts...)
	}
}

// WithBehavior sets the locking mode of outermost transactions.
func WithBehavior(b transaction.Behavior) Option {
	return func(c *Config) {
		c.Behavior = b
	}
}

// WithEngineOption sets one engine open option.
func WithEngineOption(key string, value interface{}) Option {
	return func(c *Config) {
		if c.EngineOptions == nil {
			c.EngineOptions = map[string]interface{}{}
		}
		c.EngineOptions[key] = value
	}
}

// WithEngineOptions replaces the engine open options.
func WithEngineOptions(opts map[string]interface{}) Option {
	return func(c *Config) {
		c.EngineOptions = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithLogQueries enables or disables query logging.
func WithLogQueries(enabled bool) Option {
	return func(c *Config) {
		c.LogQueries = enabled
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		opt(config)
	}
}
