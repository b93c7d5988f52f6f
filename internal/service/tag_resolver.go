package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"news_ingest/internal/domain"
	"news_ingest/internal/slug"
)

type TagConfig struct {
	AutoCreate  bool
	DefaultType string
}

// TagResolver maps free-text topics to tags and syncs them onto articles.
type TagResolver struct {
	tags TagStore
	cfg  TagConfig
}

func NewTagResolver(tags TagStore, cfg TagConfig) *TagResolver {
	if cfg.DefaultType == "" {
		cfg.DefaultType = "topic"
	}
	return &TagResolver{tags: tags, cfg: cfg}
}

// AttachTags replaces the article's tags with those resolved from topics.
// Unknown topics are skipped unless auto-create is enabled.
func (r *TagResolver) AttachTags(ctx context.Context, article *domain.Article, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	var (
		tagIDs   []int64
		resolved []domain.Tag
		seen     = make(map[int64]struct{}, len(topics))
	)

	for _, topic := range topics {
		tag, err := r.resolve(ctx, topic)
		if err != nil {
			return err
		}
		if tag == nil {
			continue
		}
		if _, dup := seen[tag.ID]; dup {
			continue
		}
		seen[tag.ID] = struct{}{}
		tagIDs = append(tagIDs, tag.ID)
		resolved = append(resolved, *tag)
	}

	if len(tagIDs) == 0 {
		return nil
	}

	if err := r.tags.Sync(ctx, article.ID, tagIDs); err != nil {
		return fmt.Errorf("sync tags: %w", err)
	}
	article.Tags = resolved

	return nil
}

func (r *TagResolver) resolve(ctx context.Context, topic string) (*domain.Tag, error) {
	tagSlug := slug.Make(topic)
	if tagSlug == "" {
		return nil, nil
	}

	if r.cfg.AutoCreate {
		tag, err := r.tags.FirstOrCreate(ctx, &domain.Tag{
			Slug: tagSlug,
			Name: slug.Title(strings.ReplaceAll(tagSlug, "-", " ")),
			Type: r.cfg.DefaultType,
		})
		if err != nil {
			return nil, fmt.Errorf("create tag %q: %w", tagSlug, err)
		}
		return tag, nil
	}

	tag, err := r.tags.FindBySlug(ctx, tagSlug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tag %q: %w", tagSlug, err)
	}
	return tag, nil
}
