package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"news_ingest/internal/domain"
)

// StatsStore answers the aggregate queries behind the status and stats commands.
type StatsStore struct {
	db *sqlx.DB
}

func NewStatsStore(db *sqlx.DB) *StatsStore {
	return &StatsStore{db: db}
}

// Counts aggregates article volume relative to now. A non-nil since restricts Total to
// articles created at or after it.
func (s *StatsStore) Counts(ctx context.Context, now time.Time, since *time.Time) (domain.ArticleCounts, error) {
	live := "deleted_at IS NULL"
	total := sq.Expr("COUNT(*) FILTER (WHERE " + live + ")")
	if since != nil {
		total = sq.Expr("COUNT(*) FILTER (WHERE "+live+" AND created_at >= ?)", *since)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	query, args, err := psql.Select().
		Column(sq.Alias(total, "total")).
		Column(sq.Alias(sq.Expr("COUNT(*) FILTER (WHERE deleted_at IS NOT NULL)"), "soft_deleted")).
		Column(sq.Alias(sq.Expr("COUNT(*) FILTER (WHERE "+live+" AND created_at >= ?)", now.Add(-24*time.Hour)), "last_day")).
		Column(sq.Alias(sq.Expr("COUNT(*) FILTER (WHERE "+live+" AND created_at >= ?)", now.AddDate(0, 0, -7)), "last_week")).
		Column(sq.Alias(sq.Expr("COUNT(*) FILTER (WHERE "+live+" AND created_at >= ?)", now.AddDate(0, -1, 0)), "last_month")).
		Column(sq.Alias(sq.Expr("COUNT(*) FILTER (WHERE "+live+" AND created_at >= ?)", startOfDay), "today")).
		Column(sq.Alias(sq.Expr("MAX(created_at)"), "last_received")).
		From("articles").
		ToSql()
	if err != nil {
		return domain.ArticleCounts{}, fmt.Errorf("build query: %w", err)
	}

	var row struct {
		Total        int64      `db:"total"`
		SoftDeleted  int64      `db:"soft_deleted"`
		LastDay      int64      `db:"last_day"`
		LastWeek     int64      `db:"last_week"`
		LastMonth    int64      `db:"last_month"`
		Today        int64      `db:"today"`
		LastReceived *time.Time `db:"last_received"`
	}
	if err := sqlx.GetContext(ctx, s.db, &row, query, args...); err != nil {
		return domain.ArticleCounts{}, fmt.Errorf("count articles: %w", err)
	}

	return domain.ArticleCounts{
		Total:        row.Total,
		SoftDeleted:  row.SoftDeleted,
		LastDay:      row.LastDay,
		LastWeek:     row.LastWeek,
		LastMonth:    row.LastMonth,
		Today:        row.Today,
		LastReceived: row.LastReceived,
	}, nil
}

// TopSources returns the sources with the most live articles.
func (s *StatsStore) TopSources(ctx context.Context, since *time.Time, limit uint64) ([]domain.SourceCount, error) {
	q := psql.Select("s.name AS name", "COUNT(a.id) AS article_count").
		From("articles a").
		Join("news_sources s ON s.id = a.news_source_id").
		Where(sq.Eq{"a.deleted_at": nil}).
		GroupBy("s.name").
		OrderBy("article_count DESC", "s.name").
		Limit(limit)
	if since != nil {
		q = q.Where(sq.GtOrEq{"a.created_at": *since})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []domain.SourceCount
	if err := sqlx.SelectContext(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("top sources: %w", err)
	}
	return out, nil
}

// TopTags returns the tags linked to the most live articles.
func (s *StatsStore) TopTags(ctx context.Context, since *time.Time, limit uint64) ([]domain.TagCount, error) {
	q := psql.Select("t.name AS name", "COUNT(at.article_id) AS article_count").
		From("tags t").
		Join("article_tag at ON at.tag_id = t.id").
		Join("articles a ON a.id = at.article_id").
		Where(sq.Eq{"a.deleted_at": nil}).
		GroupBy("t.name").
		OrderBy("article_count DESC", "t.name").
		Limit(limit)
	if since != nil {
		q = q.Where(sq.GtOrEq{"a.created_at": *since})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []domain.TagCount
	if err := sqlx.SelectContext(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	return out, nil
}
