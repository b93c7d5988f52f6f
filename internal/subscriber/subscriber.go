// Package subscriber consumes article payloads from pub/sub channels.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"news_ingest/internal/domain"
	"news_ingest/internal/events"
	"news_ingest/internal/metrics"
)

const (
	DefaultBackoff = 5 * time.Second
	unknownChannel = "unknown"
	previewLength  = 200
)

type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.Payload, channel string) error
}

type Recorder interface {
	RecordMessage(result string)
	RecordReconnect()
	RecordQueued()
}

type QualityFilter struct {
	Enabled  bool
	MinScore float64
}

// Rejects reports whether payload falls below the minimum quality score.
// A missing score counts as zero.
func (f QualityFilter) Rejects(payload domain.Payload) bool {
	if !f.Enabled || f.MinScore <= 0 {
		return false
	}
	score, _ := payload.Float("quality_score")
	return score < f.MinScore
}

type Config struct {
	Channels []string
	Quality  QualityFilter
	// Sync runs the pipeline inline; otherwise payloads are enqueued.
	Sync bool
	// Backoff is the wait after an unexpected transport error. Zero means DefaultBackoff.
	Backoff time.Duration
}

type Deps struct {
	Transport Transport
	Job       *ArticleJob
	Queue     Enqueuer
	Events    Dispatcher
	Recorder  Recorder
}

type Subscriber struct {
	transport Transport
	job       *ArticleJob
	queue     Enqueuer
	events    Dispatcher
	recorder  Recorder
	cfg       Config
	logger    *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
}

func New(deps Deps, cfg Config, logger *slog.Logger) (*Subscriber, error) {
	if deps.Transport == nil {
		return nil, errors.New("subscriber: transport is required")
	}
	if len(cfg.Channels) == 0 {
		return nil, errors.New("subscriber: no channels to subscribe to")
	}
	if cfg.Sync && deps.Job == nil {
		return nil, errors.New("subscriber: sync processing needs an article job")
	}
	if !cfg.Sync && deps.Queue == nil {
		return nil, errors.New("subscriber: queued processing needs a queue")
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &Subscriber{
		transport: deps.Transport,
		job:       deps.Job,
		queue:     deps.Queue,
		events:    deps.Events,
		recorder:  deps.Recorder,
		cfg:       cfg,
		logger:    logger.With("component", "subscriber"),
	}, nil
}

// Run subscribes and processes messages until ctx is cancelled, reconnecting on failure.
// Timeouts reconnect at once; other errors wait for the configured backoff first.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("subscribing", "channels", s.cfg.Channels, "sync", s.cfg.Sync)

	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			break
		}

		if isTransient(err) {
			s.logger.Debug("subscription timed out, reconnecting", "error", err)
			s.recordReconnect()
			continue
		}

		s.logger.Error("subscriber error, reconnecting", "error", err, "backoff", s.cfg.Backoff)

		timer := time.NewTimer(s.cfg.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
		s.recordReconnect()
	}

	st := s.Stats()
	s.logger.Info("subscriber stopped",
		"processed", st.Processed,
		"skipped", st.Skipped,
		"errors", st.Errors,
	)
	return nil
}

func (s *Subscriber) listen(ctx context.Context) error {
	sub, err := s.transport.Subscribe(ctx, s.cfg.Channels)
	if err != nil {
		return err
	}
	defer sub.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-done:
		}
	}()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		s.handle(ctx, msg)
	}
}

// handle never lets a single message take the loop down.
func (s *Subscriber) handle(ctx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.fail("failed to process message", msg, fmt.Errorf("panic: %v", r))
		}
	}()

	payload, err := domain.DecodePayload(msg.Payload)
	if err != nil {
		s.fail("failed to decode message", msg, err)
		return
	}

	if !payload.Has("id") || !payload.Has("title") {
		s.logger.Warn("invalid article message format", "data_keys", keys(payload))
		s.count(&s.errors, metrics.ResultError)
		return
	}

	if s.cfg.Quality.Rejects(payload) {
		s.logger.Debug("article skipped by quality filter",
			"external_id", payload.ExternalID(),
			"quality_score", payload.String("quality_score"),
			"min_score", s.cfg.Quality.MinScore,
		)
		if s.events != nil {
			s.events.Dispatch(ctx, events.ArticleSkipped{Payload: payload, MinScore: s.cfg.Quality.MinScore})
		}
		s.count(&s.skipped, metrics.ResultSkipped)
		return
	}

	channel := payload.PublisherString("channel")
	if channel == "" {
		channel = unknownChannel
	}
	if s.events != nil {
		s.events.Dispatch(ctx, events.ArticleReceived{Payload: payload, Channel: channel})
	}

	if s.cfg.Sync {
		if _, err := s.job.Process(ctx, payload); err != nil {
			s.fail("failed to process message", msg, err)
			return
		}
	} else {
		if err := s.queue.Enqueue(ctx, payload, channel); err != nil {
			s.fail("failed to enqueue message", msg, err)
			return
		}
		if s.recorder != nil {
			s.recorder.RecordQueued()
		}
	}

	s.count(&s.processed, metrics.ResultProcessed)
}

func (s *Subscriber) fail(text string, msg Message, err error) {
	s.logger.Error(text, "error", err, "channel", msg.Channel, "message_preview", preview(msg.Payload))
	s.count(&s.errors, metrics.ResultError)
}

func (s *Subscriber) count(counter *atomic.Int64, result string) {
	counter.Add(1)
	if s.recorder != nil {
		s.recorder.RecordMessage(result)
	}
}

func (s *Subscriber) recordReconnect() {
	if s.recorder != nil {
		s.recorder.RecordReconnect()
	}
}

func (s *Subscriber) Stats() domain.SubscriberStats {
	return domain.SubscriberStats{
		Processed: s.processed.Load(),
		Skipped:   s.skipped.Load(),
		Errors:    s.errors.Load(),
	}
}

func preview(payload []byte) string {
	if len(payload) > previewLength {
		return string(payload[:previewLength])
	}
	return string(payload)
}

func keys(payload domain.Payload) []string {
	out := make([]string, 0, len(payload))
	for k := range payload {
		out = append(out, k)
	}
	return out
}
