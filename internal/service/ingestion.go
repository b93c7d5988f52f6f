package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/araddon/dateparse"

	"news_ingest/internal/domain"
	"news_ingest/internal/slug"
)

const (
	untitledArticle   = "Untitled Article"
	untitledSlug      = "untitled"
	maxSlugCandidates = 1000
)

// metadataKeys are copied from the payload into Article.Metadata when present.
var metadataKeys = []string{"quality_score", "source_reputation", "publisher", "crime_relevance", "mining"}

// Outcome describes what an ingestion attempt did.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeInvalid
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutcomeRecorder observes ingestion outcomes, e.g. for metrics.
type OutcomeRecorder interface {
	RecordIngest(outcome string)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type IngestionConfig struct {
	AllowedTags []string
}

type IngestionDeps struct {
	Articles  ArticleStore
	Sources   *SourceResolver
	Tags      *TagResolver
	Sanitizer ContentSanitizer
	TxManager TransactionManager
	Clock     Clock
	Recorder  OutcomeRecorder
}

// IngestionService validates, deduplicates and persists raw article payloads.
type IngestionService struct {
	articles  ArticleStore
	sources   *SourceResolver
	tags      *TagResolver
	sanitizer ContentSanitizer
	txManager TransactionManager
	clock     Clock
	recorder  OutcomeRecorder
	logger    *slog.Logger
	config    IngestionConfig
}

func NewIngestionService(deps IngestionDeps, logger *slog.Logger, cfg IngestionConfig) *IngestionService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &IngestionService{
		articles:  deps.Articles,
		sources:   deps.Sources,
		tags:      deps.Tags,
		sanitizer: deps.Sanitizer,
		txManager: deps.TxManager,
		clock:     clock,
		recorder:  deps.Recorder,
		logger:    logger.With("component", "ingestion"),
		config:    cfg,
	}
}

// Validate reports whether the payload carries an id and a title or og_title.
func (s *IngestionService) Validate(payload domain.Payload) bool {
	return payload.ExternalID() != "" && payload.Title() != ""
}

// Ingest creates an article from payload. A nil article with a nil error means the payload
// was rejected as invalid or as a duplicate; the Outcome says which.
func (s *IngestionService) Ingest(ctx context.Context, payload domain.Payload) (*domain.Article, Outcome, error) {
	if !s.Validate(payload) {
		s.logger.Debug("payload rejected", "reason", "missing id or title")
		return s.done(nil, OutcomeInvalid, nil)
	}

	externalID := payload.ExternalID()

	exists, err := s.articles.ExistsByExternalID(ctx, externalID)
	if err != nil {
		return s.done(nil, OutcomeFailed, fmt.Errorf("check existing article: %w", err))
	}
	if exists {
		s.logger.Debug("duplicate article skipped", "external_id", externalID)
		return s.done(nil, OutcomeDuplicate, nil)
	}

	source, err := s.sources.ResolveFromData(ctx, payload)
	if err != nil {
		return s.done(nil, OutcomeFailed, err)
	}

	article := s.buildArticle(payload, source, s.clock.Now())

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.createWithUniqueSlug(txCtx, article); err != nil {
			return err
		}
		return s.tags.AttachTags(txCtx, article, payload.Strings("topics"))
	})
	if errors.Is(err, domain.ErrDuplicateArticle) {
		s.logger.Debug("duplicate article skipped on insert", "external_id", externalID)
		return s.done(nil, OutcomeDuplicate, nil)
	}
	if err != nil {
		return s.done(nil, OutcomeFailed, fmt.Errorf("create article %s: %w", externalID, err))
	}

	s.logger.Info("article ingested",
		"external_id", externalID,
		"slug", article.Slug,
		"source", source.Slug,
		"tags", len(article.Tags),
	)

	return s.done(article, OutcomeCreated, nil)
}

// Refresh updates the stored article carrying the payload's external id in place, keeping
// its slug. Unknown ids are ingested as new articles.
func (s *IngestionService) Refresh(ctx context.Context, payload domain.Payload) (*domain.Article, Outcome, error) {
	if !s.Validate(payload) {
		return s.done(nil, OutcomeInvalid, nil)
	}

	existing, err := s.articles.FindByExternalID(ctx, payload.ExternalID())
	if errors.Is(err, domain.ErrNotFound) {
		return s.Ingest(ctx, payload)
	}
	if err != nil {
		return s.done(nil, OutcomeFailed, fmt.Errorf("find article: %w", err))
	}

	source, err := s.sources.ResolveFromData(ctx, payload)
	if err != nil {
		return s.done(nil, OutcomeFailed, err)
	}

	fresh := s.buildArticle(payload, source, s.clock.Now())
	existing.NewsSourceID = fresh.NewsSourceID
	existing.Title = fresh.Title
	existing.Excerpt = fresh.Excerpt
	existing.Content = fresh.Content
	existing.URL = fresh.URL
	existing.ImageURL = fresh.ImageURL
	existing.Author = fresh.Author
	existing.PublishedAt = fresh.PublishedAt
	existing.Metadata = mergeMetadata(existing.Metadata, fresh.Metadata)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.articles.Update(txCtx, existing); err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		return s.tags.AttachTags(txCtx, existing, payload.Strings("topics"))
	})
	if err != nil {
		return s.done(nil, OutcomeFailed, fmt.Errorf("refresh article %s: %w", existing.ExternalID, err))
	}

	s.logger.Info("article refreshed", "external_id", existing.ExternalID, "id", existing.ID)

	return s.done(existing, OutcomeUpdated, nil)
}

func (s *IngestionService) done(article *domain.Article, outcome Outcome, err error) (*domain.Article, Outcome, error) {
	if s.recorder != nil {
		s.recorder.RecordIngest(outcome.String())
	}
	return article, outcome, err
}

func (s *IngestionService) buildArticle(payload domain.Payload, source *domain.NewsSource, now time.Time) *domain.Article {
	title := payload.Title()
	if title == "" {
		title = untitledArticle
	}

	publishedAt := s.publishedAt(payload, now)

	return &domain.Article{
		NewsSourceID: source.ID,
		ExternalID:   payload.ExternalID(),
		Title:        title,
		Excerpt:      payload.OptionalString("intro", "og_description"),
		Content:      s.sanitizer.Sanitize(payload.OptionalString("body"), s.config.AllowedTags),
		URL:          articleURL(payload),
		ImageURL:     payload.OptionalString("og_image", "image_url"),
		Author:       payload.OptionalString("author"),
		Status:       domain.StatusPublished,
		PublishedAt:  &publishedAt,
		CrawledAt:    now,
		Metadata:     buildMetadata(payload),
		ViewCount:    0,
		IsFeatured:   false,
	}
}

// createWithUniqueSlug inserts article under the first free slug among base, base-1, base-2…
func (s *IngestionService) createWithUniqueSlug(ctx context.Context, article *domain.Article) error {
	base := slug.Make(article.Title)
	if base == "" {
		base = untitledSlug
	}

	for n := 0; n < maxSlugCandidates; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		taken, err := s.articles.SlugExists(ctx, candidate)
		if err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if taken {
			continue
		}

		article.Slug = candidate
		err = s.articles.Create(ctx, article)
		if errors.Is(err, domain.ErrSlugTaken) {
			continue
		}
		return err
	}

	return fmt.Errorf("no free slug for %q after %d candidates", base, maxSlugCandidates)
}

// publishedAt parses published_date, falling back to publisher.published_at. Dates before
// 1970 or that fail to parse are replaced by now.
func (s *IngestionService) publishedAt(payload domain.Payload, now time.Time) time.Time {
	raw := payload.String("published_date")
	if raw == "" {
		raw = payload.PublisherString("published_at")
	}
	if raw == "" {
		return now
	}

	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || parsed.Year() < 1970 {
		return now
	}
	return parsed
}

func articleURL(payload domain.Payload) string {
	if u := payload.FirstString("canonical_url", "og_url", "source"); u != "" {
		return u
	}
	return "https://unknown/" + payload.ExternalID()
}

func buildMetadata(payload domain.Payload) domain.Metadata {
	metadata := domain.Metadata{}
	for _, key := range metadataKeys {
		if payload.Has(key) {
			metadata[key] = payload[key]
		}
	}
	return metadata
}

// mergeMetadata overlays the keys of fresh on stored, so keys a payload does not carry survive.
func mergeMetadata(stored, fresh domain.Metadata) domain.Metadata {
	merged := make(domain.Metadata, len(stored)+len(fresh))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range fresh {
		merged[k] = v
	}
	return merged
}
