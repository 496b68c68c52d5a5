package config

import (
	stderrors "errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/muhammadchandra19/exchange/pkg/errors"
	"github.com/muhammadchandra19/exchange/pkg/redis"
)

// Load loads the configuration from environment variables and .env file.
// A missing .env file is not an error.
func Load[T any](cfg T) error {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}

	return env.Parse(cfg)
}

// Config holds the configuration for the application
type Config struct {
	Products       []string `env:"PRODUCTS,required" envSeparator:","` // e.g. BTC-USD,ETH-USD
	StrictSequence bool     `env:"STRICT_SEQUENCE" envDefault:"false"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`

	FeedConfig  `envPrefix:"FEED_"`
	KafkaConfig `envPrefix:"KAFKA_"`
	RedisConfig redis.Config `envPrefix:"REDIS_"`
}

// FeedConfig tunes the per product ingestion loop.
type FeedConfig struct {
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
	EventBufferSize  int           `env:"EVENT_BUFFER_SIZE" envDefault:"1024"`
}

// KafkaConfig holds the configuration for Kafka consumer and producer.
type KafkaConfig struct {
	Brokers     []string `env:"BROKERS,required" envSeparator:","`
	TopicPrefix string   `env:"TOPIC_PREFIX" envDefault:"market."`
	// GroupID switches the readers to consumer-group mode with committed offsets.
	GroupID     string `env:"GROUP_ID"`
	EventsTopic string `env:"EVENTS_TOPIC" envDefault:"orderbook.events"`
}

// Topic returns the message topic of a product.
func (k KafkaConfig) Topic(productID string) string {
	return k.TopicPrefix + productID
}

// Validate checks the values env tags cannot express. Product ids are trimmed in place.
func (c *Config) Validate() error {
	err := errors.NewBaseError()

	seen := map[string]bool{}
	for i, p := range c.Products {
		p = strings.TrimSpace(p)
		c.Products[i] = p
		if p == "" {
			err.AddErrorDetails(errors.NewErrorDetails("product id must not be empty", errors.ConfigInvalidError, "PRODUCTS"))
			continue
		}
		if seen[p] {
			err.AddErrorDetails(errors.NewErrorDetails("duplicate product "+p, errors.ConfigInvalidError, "PRODUCTS"))
		}
		seen[p] = true
	}
	if len(c.Brokers) == 0 {
		err.AddErrorDetails(errors.NewErrorDetails("at least one broker is required", errors.ConfigInvalidError, "KAFKA_BROKERS"))
	}
	if c.SnapshotInterval <= 0 {
		err.AddErrorDetails(errors.NewErrorDetails("snapshot interval must be positive", errors.ConfigInvalidError, "FEED_SNAPSHOT_INTERVAL"))
	}
	if c.EventBufferSize < 0 {
		err.AddErrorDetails(errors.NewErrorDetails("event buffer size must not be negative", errors.ConfigInvalidError, "FEED_EVENT_BUFFER_SIZE"))
	}
	switch redisErr := c.RedisConfig.Validate().(type) {
	case nil:
	case *errors.BaseError:
		err.AddErrorDetails(redisErr.GetDetails()...)
	case *errors.ErrorDetails:
		err.AddErrorDetails(redisErr)
	default:
		err.AddErrorDetails(errors.NewErrorDetails(redisErr.Error(), errors.RedisConfigError, "REDIS"))
	}

	return err.ErrorOrNil()
}
