package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_ingest/internal/domain"
)

type ArticleStore interface {
	// Create inserts a new article. It returns domain.ErrDuplicateArticle when the external id
	// is already stored and domain.ErrSlugTaken when only the slug collides.
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) error
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type SourceStore interface {
	// FirstOrCreate returns the source with source.Slug, inserting source when none exists.
	FirstOrCreate(ctx context.Context, source *domain.NewsSource) (*domain.NewsSource, error)
}

type TagStore interface {
	FirstOrCreate(ctx context.Context, tag *domain.Tag) (*domain.Tag, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Tag, error)
	// Sync replaces the article's tag set with tagIDs, leaving confidence unset.
	Sync(ctx context.Context, articleID int64, tagIDs []int64) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContentSanitizer interface {
	Sanitize(raw *string, allowedTags []string) *string
}

type Clock interface {
	Now() time.Time
}
