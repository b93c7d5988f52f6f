// Package events dispatches article lifecycle events to in-process listeners.
package events

import (
	"context"
	"log/slog"
	"sync"

	"news_ingest/internal/domain"
)

const (
	NameArticleReceived  = "article.received"
	NameArticleSkipped   = "article.skipped"
	NameArticleProcessed = "article.processed"
)

type Event interface {
	Name() string
}

// ArticleReceived is dispatched for every payload that passed validation and the quality filter.
type ArticleReceived struct {
	Payload domain.Payload
	Channel string
}

func (ArticleReceived) Name() string { return NameArticleReceived }

// ArticleSkipped is dispatched when the quality filter drops a payload.
type ArticleSkipped struct {
	Payload  domain.Payload
	MinScore float64
}

func (ArticleSkipped) Name() string { return NameArticleSkipped }

// ArticleProcessed is dispatched after the pipeline produced an article.
type ArticleProcessed struct {
	Article *domain.Article
	Payload domain.Payload
}

func (ArticleProcessed) Name() string { return NameArticleProcessed }

type Listener func(ctx context.Context, event Event)

// Dispatcher fans events out to listeners synchronously, in registration order.
// A panicking listener is logged and does not affect the others.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string][]Listener),
		logger:    logger.With("component", "events"),
	}
}

func (d *Dispatcher) Listen(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], l)
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	listeners := d.listeners[event.Name()]
	d.mu.RUnlock()

	for _, l := range listeners {
		d.call(ctx, l, event)
	}
}

func (d *Dispatcher) call(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event listener panicked", "event", event.Name(), "panic", r)
		}
	}()
	l(ctx, event)
}

// LogListener writes a debug line per event.
func LogListener(logger *slog.Logger) Listener {
	return func(ctx context.Context, event Event) {
		switch e := event.(type) {
		case ArticleReceived:
			logger.DebugContext(ctx, "article received",
				"external_id", e.Payload.ExternalID(),
				"channel", e.Channel,
			)
		case ArticleSkipped:
			logger.DebugContext(ctx, "article skipped",
				"external_id", e.Payload.ExternalID(),
				"quality_score", e.Payload.String("quality_score"),
				"min_score", e.MinScore,
			)
		case ArticleProcessed:
			logger.DebugContext(ctx, "article processed",
				"id", e.Article.ID,
				"slug", e.Article.Slug,
			)
		}
	}
}
