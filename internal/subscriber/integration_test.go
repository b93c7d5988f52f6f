//go:build integration

package subscriber

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	addr      string
	logger    *slog.Logger
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(connStr)
	s.Require().NoError(err)
	s.addr = opts.Addr
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestTransport_PublishAndReceive() {
	transport := NewRedisTransport(RedisConfig{Addr: s.addr})
	defer transport.Close()

	latency, err := transport.Ping(s.ctx)
	s.Require().NoError(err)
	s.Greater(latency, time.Duration(0))

	sub, err := transport.Subscribe(s.ctx, []string{"articles:test"})
	s.Require().NoError(err)
	defer sub.Close()

	n, err := transport.Publish(s.ctx, "articles:test", []byte(`{"id":"1","title":"T"}`))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	msg, err := sub.Receive(s.ctx)
	s.Require().NoError(err)
	s.Equal("articles:test", msg.Channel)
	s.JSONEq(`{"id":"1","title":"T"}`, string(msg.Payload))
}

func (s *RedisIntegrationSuite) TestTransport_ReadTimeoutIsTransient() {
	transport := NewRedisTransport(RedisConfig{Addr: s.addr, ReadTimeout: 100 * time.Millisecond})
	defer transport.Close()

	sub, err := transport.Subscribe(s.ctx, []string{"articles:quiet"})
	s.Require().NoError(err)
	defer sub.Close()

	_, err = sub.Receive(s.ctx)
	s.Require().Error(err)
	s.True(isTransient(err), err.Error())
}

func (s *RedisIntegrationSuite) TestSubscriber_EndToEnd() {
	transport := NewRedisTransport(RedisConfig{Addr: s.addr, ReadTimeout: 200 * time.Millisecond})
	defer transport.Close()

	runner := &fakeRunner{}
	sub, err := New(Deps{
		Transport: transport,
		Job:       NewArticleJob(runner, nil, s.logger),
	}, Config{Channels: []string{"articles:e2e"}, Sync: true}, s.logger)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx)
	}()

	s.Eventually(func() bool {
		n, err := transport.Publish(s.ctx, "articles:e2e", []byte(`{"id":"e2e","title":"Round Trip"}`))
		return err == nil && n > 0
	}, 5*time.Second, 50*time.Millisecond)

	s.Eventually(func() bool { return sub.Stats().Processed >= 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done
}
