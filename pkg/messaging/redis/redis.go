package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// Broker publishes to Redis pub/sub behind a circuit breaker, so a
// Redis outage degrades to fast failures instead of piling up timeouts.
type Broker struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker[any]
	logger *logger.Logger
}

func NewBroker(cfg Config, log *logger.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "redis-broker",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		},
	})

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Broker{client: client, cb: cb, logger: log}, nil
}

func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.client.Publish(ctx, channel, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}

var _ messaging.Broker = (*Broker)(nil)
