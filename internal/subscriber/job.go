package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"news_ingest/internal/domain"
	"news_ingest/internal/events"
	"news_ingest/internal/pipeline"
)

type Runner interface {
	Run(ctx context.Context, payload domain.Payload) (pipeline.Result, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event events.Event)
}

// ArticleJob runs one payload through the pipeline and announces the resulting article.
// The subscriber runs it inline in sync mode and the queue worker runs it per delivery.
type ArticleJob struct {
	pipeline Runner
	events   Dispatcher
	logger   *slog.Logger
}

func NewArticleJob(runner Runner, dispatcher Dispatcher, logger *slog.Logger) *ArticleJob {
	return &ArticleJob{
		pipeline: runner,
		events:   dispatcher,
		logger:   logger.With("component", "article_job"),
	}
}

func (j *ArticleJob) Process(ctx context.Context, payload domain.Payload) (pipeline.Result, error) {
	start := time.Now()

	result, err := j.pipeline.Run(ctx, payload)
	if err != nil {
		j.logger.Error("failed to process article",
			"external_id", externalIDOrUnknown(payload),
			"error", err,
		)
		return result, fmt.Errorf("process article: %w", err)
	}

	if result.Article != nil {
		if j.events != nil {
			j.events.Dispatch(ctx, events.ArticleProcessed{Article: result.Article, Payload: payload})
		}
		j.logger.Info("article processed",
			"external_id", externalIDOrUnknown(payload),
			"title", result.Article.Title,
			"elapsed_ms", float64(time.Since(start).Microseconds())/1000,
		)
	}

	return result, nil
}

func externalIDOrUnknown(payload domain.Payload) string {
	if id := payload.ExternalID(); id != "" {
		return id
	}
	return "unknown"
}
