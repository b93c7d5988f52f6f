package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_ingest/internal/domain"
	"news_ingest/internal/sanitizer"
	"news_ingest/internal/service/mocks"
)

type IngestionServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	articles  *mocks.MockArticleStore
	sources   *mocks.MockSourceStore
	tags      *mocks.MockTagStore
	txManager *mocks.MockTransactionManager
	clock     *mocks.MockClock
	recorder  *outcomeLog

	service *IngestionService
	now     time.Time
	logger  *slog.Logger
}

func (s *IngestionServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.sources = mocks.NewMockSourceStore(s.ctrl)
	s.tags = mocks.NewMockTagStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.clock = mocks.NewMockClock(s.ctrl)
	s.recorder = &outcomeLog{}

	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.clock.EXPECT().Now().Return(s.now).AnyTimes()

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewIngestionService(IngestionDeps{
		Articles:  s.articles,
		Sources:   NewSourceResolver(s.sources),
		Tags:      NewTagResolver(s.tags, TagConfig{AutoCreate: true, DefaultType: "topic"}),
		Sanitizer: sanitizer.New(),
		TxManager: s.txManager,
		Clock:     s.clock,
		Recorder:  s.recorder,
	}, s.logger, IngestionConfig{AllowedTags: []string{"p"}})
}

func (s *IngestionServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

type outcomeLog struct {
	outcomes []string
}

func (l *outcomeLog) RecordIngest(outcome string) {
	l.outcomes = append(l.outcomes, outcome)
}

func TestIngestionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IngestionServiceTestSuite))
}

func (s *IngestionServiceTestSuite) validPayload() domain.Payload {
	return domain.Payload{
		"id":             "ext-article-001",
		"title":          "Test Crime Article",
		"canonical_url":  "https://www.torontostar.com/article/test-123",
		"source":         "https://www.torontostar.com",
		"published_date": "2026-01-15T10:30:00Z",
		"publisher": map[string]any{
			"route_id":     "route-abc",
			"published_at": "2026-01-15T10:30:00Z",
			"channel":      "crime:homepage",
		},
		"intro":         "A test excerpt for the article.",
		"body":          `<p>Safe</p><script>alert(1)</script><div>X</div>`,
		"topics":        []any{"violent-crime", "theft"},
		"quality_score": 85,
		"extra_field":   "ignored",
	}
}

func (s *IngestionServiceTestSuite) expectSource(slug string, id int64) {
	s.sources.EXPECT().FirstOrCreate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.NewsSource) (*domain.NewsSource, error) {
			s.Equal(slug, src.Slug)
			out := *src
			out.ID = id
			return &out, nil
		},
	)
}

func (s *IngestionServiceTestSuite) expectTag(slug string, id int64) {
	s.tags.EXPECT().FirstOrCreate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tag *domain.Tag) (*domain.Tag, error) {
			s.Equal(slug, tag.Slug)
			out := *tag
			out.ID = id
			return &out, nil
		},
	)
}

func (s *IngestionServiceTestSuite) TestIngest_CreatesArticle() {
	ctx := context.Background()
	payload := s.validPayload()

	s.articles.EXPECT().ExistsByExternalID(ctx, "ext-article-001").Return(false, nil)
	s.expectSource("torontostar-com", 7)
	s.articles.EXPECT().SlugExists(ctx, "test-crime-article").Return(false, nil)

	var created *domain.Article
	s.articles.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Article) error {
			a.ID = 100
			created = a
			return nil
		},
	)
	s.expectTag("violent-crime", 1)
	s.expectTag("theft", 2)
	s.tags.EXPECT().Sync(ctx, int64(100), []int64{1, 2}).Return(nil)

	article, outcome, err := s.service.Ingest(ctx, payload)

	s.Require().NoError(err)
	s.Equal(OutcomeCreated, outcome)
	s.Require().NotNil(article)
	s.Same(created, article)

	s.Equal(int64(7), article.NewsSourceID)
	s.Equal("ext-article-001", article.ExternalID)
	s.Equal("Test Crime Article", article.Title)
	s.Equal("test-crime-article", article.Slug)
	s.Equal("A test excerpt for the article.", *article.Excerpt)
	s.Require().NotNil(article.Content)
	s.Contains(*article.Content, "<p>Safe</p>")
	s.NotContains(*article.Content, "<script>")
	s.NotContains(*article.Content, "<div>")
	s.Equal("https://www.torontostar.com/article/test-123", article.URL)
	s.Nil(article.ImageURL)
	s.Nil(article.Author)
	s.Equal(domain.StatusPublished, article.Status)
	s.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), article.PublishedAt.UTC())
	s.Equal(s.now, article.CrawledAt)
	s.Equal(int64(0), article.ViewCount)
	s.False(article.IsFeatured)
	s.Len(article.Tags, 2)

	s.Equal(85, article.Metadata["quality_score"])
	s.Contains(article.Metadata, "publisher")
	s.NotContains(article.Metadata, "mining")
	s.NotContains(article.Metadata, "extra_field")
}

func (s *IngestionServiceTestSuite) TestIngest_InvalidPayloads() {
	ctx := context.Background()

	for name, payload := range map[string]domain.Payload{
		"garbage":          {"garbage": "data"},
		"missing id":       {"title": "T"},
		"missing titles":   {"id": "x"},
		"empty title only": {"id": "x", "title": ""},
	} {
		article, outcome, err := s.service.Ingest(ctx, payload)
		s.NoError(err, name)
		s.Nil(article, name)
		s.Equal(OutcomeInvalid, outcome, name)
	}
}

func (s *IngestionServiceTestSuite) TestIngest_OgTitleFallback() {
	ctx := context.Background()
	payload := domain.Payload{"id": "og-1", "og_title": "OG Title Fallback", "og_url": "https://example.com/og"}

	s.articles.EXPECT().ExistsByExternalID(ctx, "og-1").Return(false, nil)
	s.expectSource("example-com", 1)
	s.articles.EXPECT().SlugExists(ctx, "og-title-fallback").Return(false, nil)
	s.articles.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	article, _, err := s.service.Ingest(ctx, payload)

	s.Require().NoError(err)
	s.Equal("OG Title Fallback", article.Title)
	s.Equal("https://example.com/og", article.URL)
	s.Nil(article.Content)
	s.Nil(article.Excerpt)
}

func (s *IngestionServiceTestSuite) TestIngest_DuplicateExternalID() {
	ctx := context.Background()

	s.articles.EXPECT().ExistsByExternalID(ctx, "ext-article-001").Return(true, nil)

	article, outcome, err := s.service.Ingest(ctx, s.validPayload())

	s.NoError(err)
	s.Nil(article)
	s.Equal(OutcomeDuplicate, outcome)
}

func (s *IngestionServiceTestSuite) TestIngest_DuplicateRaceOnInsert() {
	ctx := context.Background()
	payload := domain.Payload{"id": "race-1", "title": "Race"}

	s.articles.EXPECT().ExistsByExternalID(ctx, "race-1").Return(false, nil)
	s.expectSource(UnknownSourceSlug, 1)
	s.articles.EXPECT().SlugExists(ctx, "race").Return(false, nil)
	s.articles.EXPECT().Create(ctx, gomock.Any()).Return(domain.ErrDuplicateArticle)

	article, outcome, err := s.service.Ingest(ctx, payload)

	s.NoError(err)
	s.Nil(article)
	s.Equal(OutcomeDuplicate, outcome)
}

func (s *IngestionServiceTestSuite) TestIngest_SlugCollisionAppendsSuffix() {
	ctx := context.Background()
	payload := domain.Payload{"id": "dup-title-2", "title": "Same Title", "source": "https://example.com"}

	s.articles.EXPECT().ExistsByExternalID(ctx, "dup-title-2").Return(false, nil)
	s.expectSource("example-com", 1)
	gomock.InOrder(
		s.articles.EXPECT().SlugExists(ctx, "same-title").Return(true, nil),
		s.articles.EXPECT().SlugExists(ctx, "same-title-1").Return(false, nil),
		s.articles.EXPECT().Create(ctx, gomock.Any()).Return(domain.ErrSlugTaken),
		s.articles.EXPECT().SlugExists(ctx, "same-title-2").Return(false, nil),
		s.articles.EXPECT().Create(ctx, gomock.Any()).Return(nil),
	)

	article, outcome, err := s.service.Ingest(ctx, payload)

	s.Require().NoError(err)
	s.Equal(OutcomeCreated, outcome)
	s.Equal("same-title-2", article.Slug)
	s.Equal("https://example.com", article.URL)
}

func (s *IngestionServiceTestSuite) TestIngest_UnknownURLFallback() {
	ctx := context.Background()
	payload := domain.Payload{"id": "no-url", "title": "!!!"}

	s.articles.EXPECT().ExistsByExternalID(ctx, "no-url").Return(false, nil)
	s.sources.EXPECT().FirstOrCreate(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, src *domain.NewsSource) (*domain.NewsSource, error) {
			s.Equal(UnknownSourceSlug, src.Slug)
			s.Equal("Unknown Source", src.Name)
			s.Equal("https://unknown", src.URL)
			return src, nil
		},
	)
	s.articles.EXPECT().SlugExists(ctx, "untitled").Return(false, nil)
	s.articles.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	article, _, err := s.service.Ingest(ctx, payload)

	s.Require().NoError(err)
	s.Equal("https://unknown/no-url", article.URL)
	s.Equal("untitled", article.Slug)
}

func (s *IngestionServiceTestSuite) TestIngest_PublishedDateFallbacks() {
	tests := []struct {
		name    string
		payload domain.Payload
		want    time.Time
	}{
		{
			name:    "pre-epoch date falls back to now",
			payload: domain.Payload{"published_date": "1969-12-31T23:59:59Z"},
			want:    s.now,
		},
		{
			name:    "garbage date falls back to now",
			payload: domain.Payload{"published_date": "not a date"},
			want:    s.now,
		},
		{
			name:    "publisher date used when published_date missing",
			payload: domain.Payload{"publisher": map[string]any{"published_at": "2026-01-15"}},
			want:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "no date at all",
			payload: domain.Payload{},
			want:    s.now,
		},
	}

	for _, tt := range tests {
		got := s.service.publishedAt(tt.payload, s.now)
		s.True(tt.want.Equal(got), "%s: got %s", tt.name, got)
	}
}

func (s *IngestionServiceTestSuite) TestIngest_StorageErrorPropagates() {
	ctx := context.Background()
	boom := errors.New("connection refused")

	s.articles.EXPECT().ExistsByExternalID(ctx, "ext-article-001").Return(false, boom)

	article, outcome, err := s.service.Ingest(ctx, s.validPayload())

	s.ErrorIs(err, boom)
	s.Nil(article)
	s.Equal(OutcomeFailed, outcome)
	s.Equal([]string{"failed"}, s.recorder.outcomes)
}

func (s *IngestionServiceTestSuite) TestRefresh_UpdatesExistingArticle() {
	ctx := context.Background()
	payload := domain.Payload{
		"id":            "ext-1",
		"title":         "New Title",
		"canonical_url": "https://example.com/a",
		"topics":        []any{"Crime"},
		"quality_score": 90,
		"_replay":       true,
	}
	existing := &domain.Article{
		ID:         5,
		ExternalID: "ext-1",
		Title:      "Old",
		Slug:       "old",
		Metadata:   domain.Metadata{"source_reputation": float64(80), "quality_score": float64(70)},
	}

	s.articles.EXPECT().FindByExternalID(ctx, "ext-1").Return(existing, nil)
	s.expectSource("example-com", 3)
	s.articles.EXPECT().Update(ctx, existing).Return(nil)
	s.expectTag("crime", 9)
	s.tags.EXPECT().Sync(ctx, int64(5), []int64{9}).Return(nil)

	article, outcome, err := s.service.Refresh(ctx, payload)

	s.Require().NoError(err)
	s.Equal(OutcomeUpdated, outcome)
	s.Equal("New Title", article.Title)
	s.Equal("old", article.Slug)
	s.Equal(int64(3), article.NewsSourceID)
	s.Equal(float64(80), article.Metadata["source_reputation"])
	s.Equal(90, article.Metadata["quality_score"])
	s.NotContains(article.Metadata, "publisher")
	s.Equal([]string{"updated"}, s.recorder.outcomes)
}

func (s *IngestionServiceTestSuite) TestRefresh_UpdateFailureIsRecorded() {
	ctx := context.Background()
	existing := &domain.Article{ID: 5, ExternalID: "ext-1", Title: "Old", Slug: "old"}
	boom := errors.New("deadlock detected")

	s.articles.EXPECT().FindByExternalID(ctx, "ext-1").Return(existing, nil)
	s.expectSource(UnknownSourceSlug, 1)
	s.articles.EXPECT().Update(ctx, existing).Return(boom)

	article, outcome, err := s.service.Refresh(ctx, domain.Payload{"id": "ext-1", "title": "T"})

	s.ErrorIs(err, boom)
	s.Nil(article)
	s.Equal(OutcomeFailed, outcome)
	s.Equal([]string{"failed"}, s.recorder.outcomes)
}

func (s *IngestionServiceTestSuite) TestRefresh_UnknownIDIsIngested() {
	ctx := context.Background()
	payload := domain.Payload{"id": "new-1", "title": "Fresh"}

	s.articles.EXPECT().FindByExternalID(ctx, "new-1").Return(nil, domain.ErrNotFound)
	s.articles.EXPECT().ExistsByExternalID(ctx, "new-1").Return(false, nil)
	s.expectSource(UnknownSourceSlug, 1)
	s.articles.EXPECT().SlugExists(ctx, "fresh").Return(false, nil)
	s.articles.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	article, outcome, err := s.service.Refresh(ctx, payload)

	s.Require().NoError(err)
	s.Equal(OutcomeCreated, outcome)
	s.Equal("fresh", article.Slug)
}
