package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

var (
	ErrDuplicateArticle = errors.New("article with this external id already exists")
	ErrSlugTaken        = errors.New("article slug already taken")
	ErrNotFound         = errors.New("not found")
)

type Article struct {
	ID           int64      `db:"id"`
	NewsSourceID int64      `db:"news_source_id"`
	ExternalID   string     `db:"external_id"`
	Title        string     `db:"title"`
	Slug         string     `db:"slug"`
	Excerpt      *string    `db:"excerpt"`
	Content      *string    `db:"content"`
	URL          string     `db:"url"`
	ImageURL     *string    `db:"image_url"`
	Author       *string    `db:"author"`
	Status       string     `db:"status"`
	PublishedAt  *time.Time `db:"published_at"`
	CrawledAt    time.Time  `db:"crawled_at"`
	Metadata     Metadata   `db:"metadata"`
	ViewCount    int64      `db:"view_count"`
	IsFeatured   bool       `db:"is_featured"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
	Tags         []Tag      `db:"-"`
}

type NewsSource struct {
	ID        int64     `db:"id"`
	Slug      string    `db:"slug"`
	Name      string    `db:"name"`
	URL       string    `db:"url"`
	IsActive  bool      `db:"is_active"`
	Metadata  Metadata  `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

type Tag struct {
	ID           int64  `db:"id"`
	Slug         string `db:"slug"`
	Name         string `db:"name"`
	Type         string `db:"type"`
	ArticleCount int64  `db:"article_count"`
}

// Metadata is an opaque JSON object stored alongside articles and sources.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func (m *Metadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan metadata: unsupported type %T", src)
	}

	out := Metadata{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan metadata: %w", err)
	}
	*m = out
	return nil
}
