// Package queue hands article payloads to RabbitMQ for asynchronous processing.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"news_ingest/internal/domain"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	// Prefetch limits unacknowledged deliveries per consumer. Zero means 1.
	Prefetch int
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	queue      string
	prefetch   int
	logger     *slog.Logger
}

// NewRabbitMQ connects and declares a durable direct exchange with the work queue bound to it.
func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	logger = logger.With("component", "queue")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", q.Name,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		queue:      q.Name,
		prefetch:   prefetch,
		logger:     logger,
	}, nil
}

// Job is the message body of a queued payload.
type Job struct {
	Payload    domain.Payload `json:"payload"`
	Channel    string         `json:"channel"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

func encodeJob(job Job) ([]byte, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return body, nil
}

// decodeJob keeps numeric payload values as json.Number, like messages read from the feed.
func decodeJob(body []byte) (Job, error) {
	var raw struct {
		Payload    json.RawMessage `json:"payload"`
		Channel    string          `json:"channel"`
		EnqueuedAt time.Time       `json:"enqueued_at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}

	payload, err := domain.DecodePayload(raw.Payload)
	if err != nil {
		return Job{}, err
	}

	return Job{Payload: payload, Channel: raw.Channel, EnqueuedAt: raw.EnqueuedAt}, nil
}

// Enqueue publishes payload as a persistent job.
func (r *RabbitMQ) Enqueue(ctx context.Context, payload domain.Payload, channel string) error {
	body, err := encodeJob(Job{Payload: payload, Channel: channel, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	r.logger.Debug("enqueued article", "external_id", payload.ExternalID(), "channel", channel)
	return nil
}

type Handler func(ctx context.Context, job Job) error

// Consume delivers jobs to handle until ctx is cancelled. Each delivery is acknowledged after
// handle succeeds. A failing job is requeued once and dropped on its second failure;
// undecodable bodies are dropped immediately.
func (r *RabbitMQ) Consume(ctx context.Context, handle Handler) error {
	if err := r.channel.Qos(r.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := r.channel.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.queue, err)
	}

	r.logger.Info("consuming jobs", "queue", r.queue, "prefetch", r.prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			r.handleDelivery(ctx, d, handle)
		}
	}
}

func (r *RabbitMQ) handleDelivery(ctx context.Context, d amqp.Delivery, handle Handler) {
	job, err := decodeJob(d.Body)
	if err != nil {
		r.logger.Error("dropping undecodable job", "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			r.logger.Error("nack job", "error", nackErr)
		}
		return
	}

	if err := safeHandle(ctx, handle, job); err != nil {
		requeue := !d.Redelivered
		r.logger.Error("job failed",
			"external_id", job.Payload.ExternalID(),
			"requeue", requeue,
			"error", err,
		)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			r.logger.Error("nack job", "error", nackErr)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		r.logger.Error("ack job", "error", err)
	}
}

func safeHandle(ctx context.Context, handle Handler, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return handle(ctx, job)
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
