// Package replay feeds stored articles back through the processor pipeline.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"news_ingest/internal/domain"
	"news_ingest/internal/pipeline"
)

var ErrNoSelection = errors.New("an article id or a since window is required")

var sincePattern = regexp.MustCompile(`^(\d+)([hd])$`)

type Selector interface {
	Select(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
}

type Runner interface {
	Run(ctx context.Context, payload domain.Payload) (pipeline.Result, error)
}

type Options struct {
	ID    int64
	Since string
	// Full marks payloads so dedup-aware processors update instead of skipping.
	Full bool
}

// ParseSince turns "<N>h" or "<N>d" into the instant that far before now.
// Anything else yields nil, meaning no time filter.
func ParseSince(since string, now time.Time) *time.Time {
	m := sincePattern.FindStringSubmatch(since)
	if m == nil {
		return nil
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}

	var from time.Time
	if m[2] == "h" {
		from = now.Add(-time.Duration(n) * time.Hour)
	} else {
		from = now.AddDate(0, 0, -n)
	}
	return &from
}

// Reconstruct rebuilds the payload an article was ingested from.
func Reconstruct(article domain.Article, full bool) domain.Payload {
	externalID := article.ExternalID
	if externalID == "" {
		externalID = fmt.Sprintf("replay-%d", article.ID)
	}

	metadata := article.Metadata

	topics := make([]string, 0, len(article.Tags))
	for _, tag := range article.Tags {
		topics = append(topics, tag.Slug)
	}

	payload := domain.Payload{
		"id":            externalID,
		"title":         article.Title,
		"canonical_url": article.URL,
		"topics":        topics,
	}

	if publisher, ok := metadata["publisher"].(map[string]any); ok && len(publisher) > 0 {
		payload["publisher"] = publisher
	}

	setOptional(payload, "intro", article.Excerpt)
	setOptional(payload, "body", article.Content)
	setOptional(payload, "author", article.Author)
	setOptional(payload, "image_url", article.ImageURL)

	if article.PublishedAt != nil {
		payload["published_date"] = article.PublishedAt.Format(time.RFC3339)
	}

	for _, key := range []string{"quality_score", "crime_relevance", "mining"} {
		if v, ok := metadata[key]; ok && v != nil {
			payload[key] = v
		}
	}

	if full {
		payload[domain.ReplayKey] = true
	}

	return payload
}

func setOptional(payload domain.Payload, key string, value *string) {
	if value != nil {
		payload[key] = *value
	}
}

type Replayer struct {
	selector Selector
	runner   Runner
	now      func() time.Time
	logger   *slog.Logger
	out      io.Writer
}

func New(selector Selector, runner Runner, logger *slog.Logger) *Replayer {
	return &Replayer{
		selector: selector,
		runner:   runner,
		now:      time.Now,
		logger:   logger.With("component", "replay"),
		out:      io.Discard,
	}
}

// WithOutput sets where per-article progress lines are written.
func (r *Replayer) WithOutput(w io.Writer) *Replayer {
	r.out = w
	return r
}

// Select resolves opts to stored articles. An id takes precedence over a since window.
func (r *Replayer) Select(ctx context.Context, opts Options) ([]domain.Article, error) {
	var filter domain.ArticleFilter
	switch {
	case opts.ID != 0:
		filter.ID = opts.ID
	case opts.Since != "":
		filter.CreatedSince = ParseSince(opts.Since, r.now())
		if filter.CreatedSince == nil {
			r.logger.Warn("unrecognised since window, selecting all articles", "since", opts.Since)
		}
	default:
		return nil, ErrNoSelection
	}

	articles, err := r.selector.Select(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}
	return articles, nil
}

// Run replays articles one by one. A failing article is reported and counted; it never stops
// the batch. Articles the pipeline skipped count as processed. With verbose set every
// replayed article is reported too.
func (r *Replayer) Run(ctx context.Context, articles []domain.Article, full, verbose bool) domain.ReplayStats {
	start := r.now()
	stats := domain.ReplayStats{Selected: len(articles)}

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}

		result, err := r.runner.Run(ctx, Reconstruct(article, full))
		if err != nil {
			stats.Errors++
			r.logger.Error("replay failed", "id", article.ID, "title", article.Title, "error", err)
			fmt.Fprintf(r.out, "  Failed [%d]: %v\n", article.ID, err)
			continue
		}

		stats.Processed++
		switch result.Outcome {
		case pipeline.OutcomeCreated:
			stats.Created++
		case pipeline.OutcomeUpdated:
			stats.Updated++
		default:
			stats.NoOp++
		}
		r.logger.Debug("replayed", "id", article.ID, "outcome", result.Outcome.String())
		if verbose {
			fmt.Fprintf(r.out, "  Replayed: %s\n", article.Title)
		}
	}

	stats.Duration = r.now().Sub(start)
	return stats
}
