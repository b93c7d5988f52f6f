package subscriber

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ReadTimeout bounds how long a subscription waits for the next message. Zero waits forever.
	ReadTimeout time.Duration
}

type RedisTransport struct {
	client      *redis.Client
	readTimeout time.Duration
}

func NewRedisTransport(cfg RedisConfig) *RedisTransport {
	return &RedisTransport{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		readTimeout: cfg.ReadTimeout,
	}
}

// Subscribe subscribes to channels and waits for the server to confirm.
func (t *RedisTransport) Subscribe(ctx context.Context, channels []string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}
	return &redisSubscription{ps: ps, readTimeout: t.readTimeout}, nil
}

// Ping returns the round trip time of a PING.
func (t *RedisTransport) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := t.client.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("ping redis: %w", err)
	}
	return time.Since(start), nil
}

// Publish returns the number of subscribers that received data.
func (t *RedisTransport) Publish(ctx context.Context, channel string, data []byte) (int64, error) {
	n, err := t.client.Publish(ctx, channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", channel, err)
	}
	return n, nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisSubscription struct {
	ps          *redis.PubSub
	readTimeout time.Duration
}

func (s *redisSubscription) Receive(ctx context.Context) (Message, error) {
	for {
		msg, err := s.ps.ReceiveTimeout(ctx, s.readTimeout)
		if err != nil {
			return Message{}, err
		}

		switch m := msg.(type) {
		case *redis.Message:
			return Message{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
		case *redis.Subscription, *redis.Pong:
			continue
		default:
			return Message{}, fmt.Errorf("unexpected pubsub message %T", msg)
		}
	}
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
