package events

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_ingest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDispatcher_DeliversByNameInOrder(t *testing.T) {
	d := NewDispatcher(testLogger())

	var calls []string
	d.Listen(NameArticleReceived, func(_ context.Context, e Event) {
		calls = append(calls, "first:"+e.(ArticleReceived).Channel)
	})
	d.Listen(NameArticleReceived, func(_ context.Context, e Event) {
		calls = append(calls, "second")
	})
	d.Listen(NameArticleProcessed, func(_ context.Context, e Event) {
		calls = append(calls, "processed")
	})

	d.Dispatch(context.Background(), ArticleReceived{Payload: domain.Payload{"id": "1"}, Channel: "crime:homepage"})

	assert.Equal(t, []string{"first:crime:homepage", "second"}, calls)
}

func TestDispatcher_ListenerPanicIsContained(t *testing.T) {
	d := NewDispatcher(testLogger())

	called := false
	d.Listen(NameArticleProcessed, func(context.Context, Event) { panic("boom") })
	d.Listen(NameArticleProcessed, func(context.Context, Event) { called = true })

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), ArticleProcessed{Article: &domain.Article{ID: 1}})
	})
	assert.True(t, called)
}

func TestDispatcher_NoListeners(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Listen(NameArticleReceived, LogListener(testLogger()))

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), ArticleProcessed{Article: &domain.Article{}})
		d.Dispatch(context.Background(), ArticleReceived{Payload: domain.Payload{}})
	})
}

func TestArticleSkipped_DeliveredByName(t *testing.T) {
	d := NewDispatcher(testLogger())
	var got []ArticleSkipped
	d.Listen(NameArticleSkipped, func(_ context.Context, e Event) {
		got = append(got, e.(ArticleSkipped))
	})
	d.Listen(NameArticleSkipped, LogListener(testLogger()))

	d.Dispatch(context.Background(), ArticleSkipped{Payload: domain.Payload{"id": "low"}, MinScore: 60})
	d.Dispatch(context.Background(), ArticleReceived{Payload: domain.Payload{"id": "other"}})

	require.Len(t, got, 1)
	assert.Equal(t, "low", got[0].Payload.ExternalID())
}
