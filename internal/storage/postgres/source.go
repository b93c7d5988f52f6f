package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"news_ingest/internal/domain"
)

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// FirstOrCreate inserts source unless its slug is already taken and returns the stored row.
// An existing row is never modified.
func (s *SourceStore) FirstOrCreate(ctx context.Context, source *domain.NewsSource) (*domain.NewsSource, error) {
	e := GetExecutor(ctx, s.db)

	_, err := e.ExecContext(ctx, `
		INSERT INTO news_sources (slug, name, url, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO NOTHING`,
		source.Slug,
		source.Name,
		source.URL,
		source.IsActive,
		source.Metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("insert source %q: %w", source.Slug, err)
	}

	var stored domain.NewsSource
	err = sqlx.GetContext(ctx, e, &stored, `
		SELECT id, slug, name, url, is_active, metadata, created_at
		FROM news_sources
		WHERE slug = $1`,
		source.Slug,
	)
	if err != nil {
		return nil, fmt.Errorf("select source %q: %w", source.Slug, err)
	}

	return &stored, nil
}
