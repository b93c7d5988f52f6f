package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_ingest/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"id", "news_source_id", "external_id", "title", "slug", "excerpt", "content", "url",
	"image_url", "author", "status", "published_at", "crawled_at", "metadata", "view_count",
	"is_featured", "created_at", "updated_at", "deleted_at",
}

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Create inserts article and fills in its id and timestamps. Conflicts are resolved without
// aborting the surrounding transaction: a conflicting external id yields
// domain.ErrDuplicateArticle, any other conflict domain.ErrSlugTaken.
func (s *ArticleStore) Create(ctx context.Context, article *domain.Article) error {
	query := `
		INSERT INTO articles (
			news_source_id, external_id, title, slug, excerpt, content, url, image_url,
			author, status, published_at, crawled_at, metadata, view_count, is_featured
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at`

	e := GetExecutor(ctx, s.db)
	err := e.QueryRowxContext(ctx, query,
		article.NewsSourceID,
		article.ExternalID,
		article.Title,
		article.Slug,
		article.Excerpt,
		article.Content,
		article.URL,
		article.ImageURL,
		article.Author,
		article.Status,
		article.PublishedAt,
		article.CrawledAt,
		article.Metadata,
		article.ViewCount,
		article.IsFeatured,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := s.ExistsByExternalID(ctx, article.ExternalID)
		if existsErr != nil {
			return existsErr
		}
		if exists {
			return domain.ErrDuplicateArticle
		}
		return domain.ErrSlugTaken
	}
	if constraint, ok := violatedConstraint(err); ok {
		return conflictError(constraint)
	}
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}

	return nil
}

// Update overwrites the mutable content fields of an existing article.
func (s *ArticleStore) Update(ctx context.Context, article *domain.Article) error {
	query := `
		UPDATE articles SET
			news_source_id = $2,
			title = $3,
			excerpt = $4,
			content = $5,
			url = $6,
			image_url = $7,
			author = $8,
			published_at = $9,
			metadata = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		article.ID,
		article.NewsSourceID,
		article.Title,
		article.Excerpt,
		article.Content,
		article.URL,
		article.ImageURL,
		article.Author,
		article.PublishedAt,
		article.Metadata,
	).Scan(&article.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update article %d: %w", article.ID, err)
	}
	return nil
}

func (s *ArticleStore) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM articles WHERE external_id = $1)", externalID)
	if err != nil {
		return false, fmt.Errorf("check external id: %w", err)
	}
	return exists, nil
}

func (s *ArticleStore) FindByExternalID(ctx context.Context, externalID string) (*domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"external_id": externalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var article domain.Article
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	return &article, nil
}

// SlugExists also counts soft-deleted rows since they keep their slug.
func (s *ArticleStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM articles WHERE slug = $1)", slug)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// Select returns live articles matching filter ordered by id, with their tags loaded.
func (s *ArticleStore) Select(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	q := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("id")

	if filter.ID != 0 {
		q = q.Where(sq.Eq{"id": filter.ID})
	}
	if filter.CreatedSince != nil {
		q = q.Where(sq.GtOrEq{"created_at": *filter.CreatedSince})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var articles []domain.Article
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, query, args...); err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}

	if err := s.loadTags(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *ArticleStore) loadTags(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	ids := make([]int64, len(articles))
	index := make(map[int64]int, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
		index[a.ID] = i
	}

	query := `
		SELECT at.article_id, t.id, t.slug, t.name, t.type, t.article_count
		FROM tags t
		INNER JOIN article_tag at ON at.tag_id = t.id
		WHERE at.article_id = ANY($1)
		ORDER BY at.article_id, t.id`

	var rows []struct {
		ArticleID int64 `db:"article_id"`
		domain.Tag
	}
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load article tags: %w", err)
	}

	for _, row := range rows {
		i := index[row.ArticleID]
		articles[i].Tags = append(articles[i].Tags, row.Tag)
	}
	return nil
}
