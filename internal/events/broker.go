package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker abstracts the shared pub/sub transport carrying serialized payloads
// between processes. Implementations must make Connect and Close idempotent;
// Close must be safe even if Connect was never called.
type Broker interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, msg []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// DefaultChannel is the shared channel name all riskguard processes use.
const DefaultChannel = "riskguard:events"

// RedisConfig holds connection settings for the Redis broker.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Channel  string `yaml:"channel" json:"channel"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultRedisConfig returns settings tuned for the low-latency trading path.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		Channel:      DefaultChannel,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// RedisBroker delivers payloads over a single Redis pub/sub channel.
type RedisBroker struct {
	cfg    RedisConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *redis.Client
	pubsub *redis.PubSub
}

// NewRedisBroker creates an unconnected broker. Connect establishes and pings
// the connection.
func NewRedisBroker(cfg RedisConfig, logger *zap.Logger) *RedisBroker {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	return &RedisBroker{cfg: cfg, logger: logger}
}

func (b *RedisBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         b.cfg.Addr,
		Password:     b.cfg.Password,
		DB:           b.cfg.DB,
		DialTimeout:  b.cfg.DialTimeout,
		ReadTimeout:  b.cfg.ReadTimeout,
		WriteTimeout: b.cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("events: connect redis broker: %w", err)
	}

	b.client = client
	b.logger.Info("redis broker connected",
		zap.String("addr", b.cfg.Addr),
		zap.String("channel", b.cfg.Channel))
	return nil
}

func (b *RedisBroker) Publish(ctx context.Context, msg []byte) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if client == nil {
		return fmt.Errorf("events: redis broker not connected")
	}
	return client.Publish(ctx, b.cfg.Channel, msg).Err()
}

// Subscribe opens the channel subscription and returns a stream of raw
// messages. The stream closes when ctx is cancelled or the broker is closed.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil, fmt.Errorf("events: redis broker not connected")
	}

	b.pubsub = b.client.Subscribe(ctx, b.cfg.Channel)
	ch := b.pubsub.Channel()

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
	}
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
