package redis

import (
	"time"

	"github.com/muhammadchandra19/exchange/pkg/errors"
)

// Mode represents the mode of the Redis client.
type Mode string

const (
	// Standalone Mode is for a single Redis instance.
	Standalone Mode = "standalone"
	// Cluster Mode is for a Redis cluster setup.
	Cluster Mode = "cluster"
)

// Config holds the configuration for the Redis client.
type Config struct {
	Mode     Mode   `env:"MODE" envDefault:"standalone"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`

	Addrs []string `env:"ADDRS" envDefault:"localhost:6379" envSeparator:","`

	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	MinRetryBackoff time.Duration `env:"MIN_RETRY_BACKOFF" envDefault:"100ms"`
	MaxRetryBackoff time.Duration `env:"MAX_RETRY_BACKOFF" envDefault:"2s"`
	PoolSize        int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns    int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"10m"`
	PoolTimeout     time.Duration `env:"POOL_TIMEOUT" envDefault:"4s"`
	PrefixKey       string        `env:"PREFIX_KEY" envDefault:"orderbook:"`
	// CheckpointTTL bounds how long a stored book checkpoint stays usable. Zero keeps it forever.
	CheckpointTTL       time.Duration `env:"CHECKPOINT_TTL" envDefault:"1h"`
	ReconnectMaxRetries int           `env:"RECONNECT_MAX_RETRIES" envDefault:"3"`
}

// DefaultConfig returns a default configuration for the Redis client.
func DefaultConfig() *Config {
	return &Config{
		Mode:            Standalone,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		PoolTimeout:     4 * time.Second,
		PrefixKey:       "orderbook:",
		CheckpointTTL:   time.Hour,

		ReconnectMaxRetries: 3,
	}
}

// Validate collects every invalid setting into a single error.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewErrorDetails("Redis config is nil", errors.RedisConfigError, "config")
	}

	base := errors.NewBaseError()
	check := func(bad bool, message, field string) {
		if bad {
			base.AddErrorDetails(errors.NewErrorDetails(message, errors.RedisConfigError, field))
		}
	}

	check(len(c.Addrs) == 0, "Redis addresses are empty", "ADDRS")
	check(c.Mode != Standalone && c.Mode != Cluster, "Invalid Redis mode", "MODE")
	check(c.ConnectTimeout <= 0, "Invalid Redis connect timeout", "CONNECT_TIMEOUT")
	check(c.PoolSize <= 0, "Invalid Redis pool size", "POOL_SIZE")
	check(c.MaxIdleConns < 0, "Invalid Redis max idle connections", "MAX_IDLE_CONNS")
	check(c.ConnMaxLifetime <= 0, "Invalid Redis connection max lifetime", "CONN_MAX_LIFETIME")
	check(c.ConnMaxIdleTime <= 0, "Invalid Redis connection max idle time", "CONN_MAX_IDLE_TIME")
	check(c.PoolTimeout <= 0, "Invalid Redis pool timeout", "POOL_TIMEOUT")
	check(c.MaxRetries < 0, "Invalid Redis max retries", "MAX_RETRIES")
	check(c.MinRetryBackoff < 0, "Invalid Redis minimum retry backoff", "MIN_RETRY_BACKOFF")
	check(c.MaxRetryBackoff < 0, "Invalid Redis maximum retry backoff", "MAX_RETRY_BACKOFF")
	check(c.CheckpointTTL < 0, "Invalid checkpoint ttl", "CHECKPOINT_TTL")

	return base.ErrorOrNil()
}
