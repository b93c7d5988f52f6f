package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"news_ingest/internal/config"
	"news_ingest/internal/events"
	"news_ingest/internal/metrics"
	"news_ingest/internal/pipeline"
	"news_ingest/internal/queue"
	"news_ingest/internal/sanitizer"
	"news_ingest/internal/service"
	"news_ingest/internal/storage/postgres"
	"news_ingest/internal/subscriber"
)

// app holds what every database-backed command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, setupLogger("info"), err
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func newApp(configPath string) (*app, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Debug("connected to database")

	registry := prometheus.NewRegistry()

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		metrics:  metrics.NewCollector(registry),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}

// pipeline wires the stores and services behind the configured processor chain.
func (a *app) pipeline() *pipeline.Pipeline {
	txManager := postgres.NewTransactionManager(a.db)

	ingestion := service.NewIngestionService(service.IngestionDeps{
		Articles: postgres.NewArticleStore(a.db),
		Sources:  service.NewSourceResolver(postgres.NewSourceStore(a.db)),
		Tags: service.NewTagResolver(postgres.NewTagStore(a.db), service.TagConfig{
			AutoCreate:  a.cfg.AutoCreateTags(),
			DefaultType: a.cfg.Tags.DefaultType,
		}),
		Sanitizer: sanitizer.New(),
		TxManager: txManager,
		Recorder:  a.metrics,
	}, a.logger, service.IngestionConfig{
		AllowedTags: a.cfg.Content.AllowedTags,
	})

	registry := pipeline.NewRegistry()
	pipeline.RegisterBuiltins(registry, ingestion)

	return pipeline.Build(registry, a.cfg.Processors, a.logger, pipeline.WithObserver(a.metrics))
}

func (a *app) events() *events.Dispatcher {
	dispatcher := events.NewDispatcher(a.logger)
	listener := events.LogListener(a.logger)
	dispatcher.Listen(events.NameArticleReceived, listener)
	dispatcher.Listen(events.NameArticleProcessed, listener)
	return dispatcher
}

func (a *app) queue() (*queue.RabbitMQ, error) {
	q, err := queue.NewRabbitMQ(queue.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return q, nil
}

func redisTransport(cfg *config.Config) *subscriber.RedisTransport {
	return subscriber.NewRedisTransport(subscriber.RedisConfig{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
}
