package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"news_ingest/internal/config"
	"news_ingest/internal/domain"
	"news_ingest/internal/slug"
	"news_ingest/internal/storage/postgres"
)

const testSiteURL = "https://test.news-ingest.example"

func testPublishCmd(configPath *string) *cobra.Command {
	var (
		channel string
		quality int
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "test-publish",
		Short: "Publish a test article to verify the pipeline end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			if channel == "" {
				channel = cfg.Channels("")[0]
			}

			payload := testPayload(channel, quality, time.Now().UTC())
			out := cmd.OutOrStdout()

			if dryRun {
				data, err := json.MarshalIndent(payload, "", "    ")
				if err != nil {
					return fmt.Errorf("encode payload: %w", err)
				}
				fmt.Fprintf(out, "Dry run, would publish to: %s\n\n%s\n", channel, data)
				return nil
			}

			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}

			transport := redisTransport(cfg)
			defer transport.Close()

			receivers, err := transport.Publish(cmd.Context(), channel, data)
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}

			fmt.Fprintf(out, "Published test article to [%s] (%d subscriber(s) received)\n", channel, receivers)
			fmt.Fprintf(out, "External ID: %s\n", payload.ExternalID())
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "target channel, defaults to the first configured channel")
	cmd.Flags().IntVar(&quality, "quality", 75, "quality score of the test article")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the payload without publishing")

	return cmd
}

func testPayload(channel string, quality int, now time.Time) domain.Payload {
	title := "Test Article: pipeline check " + now.Format("2006-01-02 15:04:05")
	published := now.Format(time.RFC3339)

	return domain.Payload{
		"id":             "test-" + uuid.NewString(),
		"title":          title,
		"canonical_url":  testSiteURL + "/" + slug.Make(title),
		"source":         testSiteURL,
		"published_date": published,
		"publisher": map[string]any{
			"route_id":     "test-route",
			"published_at": published,
			"channel":      channel,
		},
		"intro":         "A synthetic article published to verify the ingestion pipeline.",
		"body":          "<p>This article was generated by the test-publish command.</p>",
		"topics":        []string{"test"},
		"quality_score": quality,
	}
}

func doctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			problems, err := config.Check(*configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(out, "All checks passed. Configuration is valid.")
				return nil
			}

			failed := 0
			for _, p := range problems {
				if p.Deprecated {
					fmt.Fprintf(out, "WARN  %s\n", p)
					continue
				}
				failed++
				fmt.Fprintf(out, "FAIL  %s\n", p)
			}

			if failed > 0 {
				return fmt.Errorf("%d config problem(s) found", failed)
			}
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			if err := postgres.Migrate(cfg.Database.URL()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}
