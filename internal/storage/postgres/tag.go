package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"news_ingest/internal/domain"
)

type TagStore struct {
	db *sqlx.DB
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) FirstOrCreate(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	e := GetExecutor(ctx, s.db)

	_, err := e.ExecContext(ctx, `
		INSERT INTO tags (slug, name, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING`,
		tag.Slug, tag.Name, tag.Type,
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag %q: %w", tag.Slug, err)
	}

	return s.FindBySlug(ctx, tag.Slug)
}

func (s *TagStore) FindBySlug(ctx context.Context, slug string) (*domain.Tag, error) {
	var tag domain.Tag
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &tag,
		"SELECT id, slug, name, type, article_count FROM tags WHERE slug = $1", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tag %q: %w", slug, err)
	}
	return &tag, nil
}

// Sync replaces the tag links of an article with tagIDs. Confidence is left NULL.
func (s *TagStore) Sync(ctx context.Context, articleID int64, tagIDs []int64) error {
	e := GetExecutor(ctx, s.db)

	_, err := e.ExecContext(ctx, "DELETE FROM article_tag WHERE article_id = $1", articleID)
	if err != nil {
		return fmt.Errorf("clear article tags: %w", err)
	}

	if len(tagIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO article_tag (article_id, tag_id) VALUES ")
	valueArgs := make([]any, 0, len(tagIDs)+1)
	valueArgs = append(valueArgs, articleID)

	for i, tagID := range tagIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i + 2))
		sb.WriteString(")")
		valueArgs = append(valueArgs, tagID)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	if _, err := e.ExecContext(ctx, sb.String(), valueArgs...); err != nil {
		return fmt.Errorf("link article tags: %w", err)
	}
	return nil
}

func (s *TagStore) GetByArticleID(ctx context.Context, articleID int64) ([]domain.Tag, error) {
	query := `
		SELECT t.id, t.slug, t.name, t.type, t.article_count
		FROM tags t
		INNER JOIN article_tag at ON at.tag_id = t.id
		WHERE at.article_id = $1
		ORDER BY t.id`

	var tags []domain.Tag
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &tags, query, articleID); err != nil {
		return nil, fmt.Errorf("get article tags: %w", err)
	}
	return tags, nil
}
