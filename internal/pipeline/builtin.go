package pipeline

import (
	"context"

	"news_ingest/internal/domain"
	"news_ingest/internal/service"
)

const (
	ProcessorDefault = "default"
	ProcessorUpsert  = "upsert"
)

type Ingester interface {
	Ingest(ctx context.Context, payload domain.Payload) (*domain.Article, service.Outcome, error)
	Refresh(ctx context.Context, payload domain.Payload) (*domain.Article, service.Outcome, error)
}

// DefaultProcessor creates new articles and drops duplicates, replayed or not.
type DefaultProcessor struct {
	ingester Ingester
}

func NewDefaultProcessor(ingester Ingester) *DefaultProcessor {
	return &DefaultProcessor{ingester: ingester}
}

func (p *DefaultProcessor) Process(ctx context.Context, payload domain.Payload, _ *domain.Article) (*domain.Article, error) {
	article, _, err := p.ingester.Ingest(ctx, payload)
	return article, err
}

func (p *DefaultProcessor) ShouldProcess(domain.Payload) bool {
	return true
}

// UpsertProcessor behaves like DefaultProcessor except that payloads marked by a full replay
// update the stored article in place.
type UpsertProcessor struct {
	ingester Ingester
}

func NewUpsertProcessor(ingester Ingester) *UpsertProcessor {
	return &UpsertProcessor{ingester: ingester}
}

func (p *UpsertProcessor) Process(ctx context.Context, payload domain.Payload, _ *domain.Article) (*domain.Article, error) {
	if payload.Bool(domain.ReplayKey) {
		article, _, err := p.ingester.Refresh(ctx, payload)
		return article, err
	}
	article, _, err := p.ingester.Ingest(ctx, payload)
	return article, err
}

func (p *UpsertProcessor) ShouldProcess(domain.Payload) bool {
	return true
}

// RegisterBuiltins registers the processors backed by the ingestion service.
func RegisterBuiltins(r *Registry, ingester Ingester) {
	r.Register(ProcessorDefault, func() (Processor, error) {
		return NewDefaultProcessor(ingester), nil
	})
	r.Register(ProcessorUpsert, func() (Processor, error) {
		return NewUpsertProcessor(ingester), nil
	})
}
