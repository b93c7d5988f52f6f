package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"news_ingest/internal/domain"
	"news_ingest/internal/slug"
)

const (
	UnknownSourceSlug = "unknown"
	unknownHost       = "unknown"
)

// SourceResolver maps article URLs to news sources, creating them on first sight.
type SourceResolver struct {
	sources SourceStore
}

func NewSourceResolver(sources SourceStore) *SourceResolver {
	return &SourceResolver{sources: sources}
}

// Resolve returns the source for the domain of rawURL. An existing source is returned unchanged.
func (r *SourceResolver) Resolve(ctx context.Context, rawURL string) (*domain.NewsSource, error) {
	host, scheme := parseHost(rawURL)
	if scheme == "" {
		scheme = "https"
	}

	sourceSlug := slug.Make(strings.ReplaceAll(strings.TrimPrefix(host, "www."), ".", "-"))
	if sourceSlug == "" {
		sourceSlug = UnknownSourceSlug
	}

	source, err := r.sources.FirstOrCreate(ctx, &domain.NewsSource{
		Slug:     sourceSlug,
		Name:     slug.Title(strings.ReplaceAll(sourceSlug, "-", ".")),
		URL:      scheme + "://" + host,
		IsActive: true,
		Metadata: domain.Metadata{},
	})
	if err != nil {
		return nil, fmt.Errorf("resolve source %q: %w", sourceSlug, err)
	}
	return source, nil
}

// ResolveFromData resolves the source from canonical_url, og_url or source, in that order.
// Payloads without any URL map to the shared "unknown" source.
func (r *SourceResolver) ResolveFromData(ctx context.Context, payload domain.Payload) (*domain.NewsSource, error) {
	if rawURL := payload.FirstString("canonical_url", "og_url", "source"); rawURL != "" {
		return r.Resolve(ctx, rawURL)
	}

	source, err := r.sources.FirstOrCreate(ctx, &domain.NewsSource{
		Slug:     UnknownSourceSlug,
		Name:     "Unknown Source",
		URL:      "https://unknown",
		IsActive: true,
		Metadata: domain.Metadata{},
	})
	if err != nil {
		return nil, fmt.Errorf("resolve unknown source: %w", err)
	}
	return source, nil
}

func parseHost(rawURL string) (host, scheme string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return unknownHost, ""
	}
	host = strings.ToLower(u.Hostname())
	if host == "" {
		host = unknownHost
	}
	return host, u.Scheme
}
