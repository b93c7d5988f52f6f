package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_ingest/internal/domain"
	"news_ingest/internal/events"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	cmd := rootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{
		"subscribe", "worker", "replay", "status", "stats", "test-publish", "doctor", "migrate",
	}, names)
}

func TestTestPayload(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	p := testPayload("articles:crime", 60, now)

	assert.True(t, strings.HasPrefix(p.ExternalID(), "test-"))
	assert.Equal(t, "articles:crime", p.PublisherString("channel"))
	assert.Equal(t, "2026-05-01T09:00:00Z", p["published_date"])
	assert.True(t, strings.HasPrefix(p.String("canonical_url"), testSiteURL+"/test-article-pipeline-check"))

	score, ok := p.Float("quality_score")
	require.True(t, ok)
	assert.Equal(t, float64(60), score)

	other := testPayload("articles:crime", 60, now)
	assert.NotEqual(t, p.ExternalID(), other.ExternalID())
}

func TestTestPublish_DryRun(t *testing.T) {
	path := writeConfig(t, "redis:\n  channels: [articles:one, articles:two]\n")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"test-publish", "--config", path, "--dry-run", "--quality", "90"})

	require.NoError(t, cmd.Execute())

	const header = "Dry run, would publish to: articles:one\n\n"
	text := out.String()
	require.True(t, strings.HasPrefix(text, header))

	payload, err := domain.DecodePayload([]byte(strings.TrimPrefix(text, header)))
	require.NoError(t, err)
	assert.Equal(t, "articles:one", payload.PublisherString("channel"))

	score, ok := payload.Float("quality_score")
	require.True(t, ok)
	assert.Equal(t, float64(90), score)
}

func TestDoctor(t *testing.T) {
	t.Run("clean config", func(t *testing.T) {
		path := writeConfig(t, "redis:\n  channels: [articles:one]\n")

		cmd := rootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"doctor", "--config", path})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "All checks passed")
	})

	t.Run("deprecated key only warns", func(t *testing.T) {
		path := writeConfig(t, "redis:\n  channel: articles:one\n")

		cmd := rootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"doctor", "--config", path})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "WARN")
		assert.Contains(t, out.String(), "redis.channels")
	})

	t.Run("unknown key fails", func(t *testing.T) {
		path := writeConfig(t, "redis:\n  chanels: [articles:one]\n")

		cmd := rootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"doctor", "--config", path})

		assert.Error(t, cmd.Execute())
		assert.Contains(t, out.String(), "FAIL")
	})
}

func TestReplay_RequiresSelection(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay", "--config", "does-not-exist.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "since")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPrintDetails(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	var out bytes.Buffer
	printDetails(dispatcher, &out)
	ctx := context.Background()

	dispatcher.Dispatch(ctx, events.ArticleSkipped{
		Payload:  domain.Payload{"id": "low", "title": "Low Quality", "quality_score": 30},
		MinScore: 60,
	})
	dispatcher.Dispatch(ctx, events.ArticleProcessed{Article: &domain.Article{Title: "Crime Story"}})

	assert.Equal(t, "  Skipped (quality 30 < 60): Low Quality\n  Processed: Crime Story\n", out.String())
}
