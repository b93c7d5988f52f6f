// Package pipeline runs article payloads through an ordered chain of processors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"news_ingest/internal/domain"
)

// Processor is one stage of the pipeline. Process receives the article produced by the
// previous stage, nil for the first one, and returns nil to stop the pipeline.
type Processor interface {
	Process(ctx context.Context, payload domain.Payload, article *domain.Article) (*domain.Article, error)
	ShouldProcess(payload domain.Payload) bool
}

// Factory builds a processor when the pipeline is assembled.
type Factory func() (Processor, error)

// Registry maps processor names used in configuration to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Outcome int

const (
	OutcomeNoOp Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "ran-created"
	case OutcomeUpdated:
		return "ran-updated"
	default:
		return "ran-no-op"
	}
}

type Result struct {
	Article *domain.Article
	Outcome Outcome
}

type DurationObserver interface {
	ObservePipeline(d time.Duration)
}

type stage struct {
	name      string
	processor Processor
}

type Pipeline struct {
	stages   []stage
	observer DurationObserver
	logger   *slog.Logger
}

type Option func(*Pipeline)

func WithObserver(o DurationObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

// Build resolves names against the registry in order. Unknown names and failing factories
// are logged and left out; they never fail the build.
func Build(registry *Registry, names []string, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{logger: logger.With("component", "pipeline")}
	for _, opt := range opts {
		opt(p)
	}

	for _, name := range names {
		factory, ok := registry.factories[name]
		if !ok {
			p.logger.Warn("processor is not registered, skipping", "processor", name)
			continue
		}

		processor, err := factory()
		if err != nil {
			p.logger.Warn("processor could not be built, skipping", "processor", name, "error", err)
			continue
		}
		if processor == nil {
			p.logger.Warn("processor factory returned nothing, skipping", "processor", name)
			continue
		}

		p.stages = append(p.stages, stage{name: name, processor: processor})
	}

	return p
}

// Names lists the active stages in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// Run feeds payload through every stage whose ShouldProcess accepts it. The first stage
// returning a nil article ends the run with OutcomeNoOp.
func (p *Pipeline) Run(ctx context.Context, payload domain.Payload) (Result, error) {
	if p.observer != nil {
		start := time.Now()
		defer func() { p.observer.ObservePipeline(time.Since(start)) }()
	}

	var article *domain.Article

	for _, s := range p.stages {
		if !s.processor.ShouldProcess(payload) {
			continue
		}

		next, err := s.processor.Process(ctx, payload, article)
		if err != nil {
			return Result{}, fmt.Errorf("processor %s: %w", s.name, err)
		}
		if next == nil {
			p.logger.Debug("pipeline stopped", "processor", s.name, "external_id", payload.ExternalID())
			return Result{Outcome: OutcomeNoOp}, nil
		}
		article = next
	}

	if article == nil {
		return Result{Outcome: OutcomeNoOp}, nil
	}
	return Result{Article: article, Outcome: outcomeOf(article)}, nil
}

// outcomeOf tells an inserted row from a rewritten one: both timestamps are set by the insert,
// and only an update moves updated_at past created_at.
func outcomeOf(article *domain.Article) Outcome {
	if article.UpdatedAt.After(article.CreatedAt) {
		return OutcomeUpdated
	}
	return OutcomeCreated
}
