package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"news_ingest/internal/replay"
	"news_ingest/internal/storage/postgres"
)

const topLimit = 10

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection status and recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Connection Status")
			fmt.Fprintln(out, rule(40))
			fmt.Fprintf(out, "Redis host:      %s\n", a.cfg.Redis.Addr)

			transport := redisTransport(a.cfg)
			defer transport.Close()

			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			latency, err := transport.Ping(pingCtx)
			cancel()
			if err != nil {
				fmt.Fprintf(out, "Connection:      Failed (%v)\n", err)
			} else {
				fmt.Fprintf(out, "Connection:      Connected (latency: %dms)\n", latency.Milliseconds())
			}

			channels := a.cfg.Channels("")
			fmt.Fprintf(out, "Channels:        %d configured\n", len(channels))
			for _, ch := range channels {
				fmt.Fprintf(out, "  - %s\n", ch)
			}

			if a.cfg.Quality.Enabled {
				fmt.Fprintf(out, "Quality filter:  enabled (min_score: %g)\n", a.cfg.Quality.MinScore)
			} else {
				fmt.Fprintln(out, "Quality filter:  disabled")
			}

			mode := "queued"
			if a.cfg.SyncProcessing() {
				mode = "sync"
			}
			fmt.Fprintf(out, "Processing mode: %s\n", mode)
			fmt.Fprintf(out, "Processors:      %s\n", strings.Join(a.pipeline().Names(), " → "))

			counts, err := postgres.NewStatsStore(a.db).Counts(ctx, time.Now(), nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Recent Activity")
			fmt.Fprintln(out, rule(40))
			fmt.Fprintf(out, "Articles (24h):  %d\n", counts.LastDay)
			fmt.Fprintf(out, "Articles (7d):   %d\n", counts.LastWeek)
			fmt.Fprintf(out, "Articles total:  %d\n", counts.Total)
			if counts.LastReceived != nil {
				fmt.Fprintf(out, "Last received:   %s ago\n", time.Since(*counts.LastReceived).Round(time.Second))
			} else {
				fmt.Fprintln(out, "Last received:   never")
			}

			return nil
		},
	}
}

type statsReport struct {
	Total       int64 `json:"total"`
	SoftDeleted int64 `json:"soft_deleted"`
	Today       int64 `json:"today"`
	ThisWeek    int64 `json:"this_week"`
	ThisMonth   int64 `json:"this_month"`
}

func statsCmd(configPath *string) *cobra.Command {
	var (
		since       string
		sourcesOnly bool
		tagsOnly    bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Display aggregate article statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			store := postgres.NewStatsStore(a.db)

			now := time.Now()
			var from *time.Time
			if since != "" {
				from = replay.ParseSince(since, now)
			}

			counts, err := store.Counts(ctx, now, from)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "    ")
				return enc.Encode(statsReport{
					Total:       counts.Total,
					SoftDeleted: counts.SoftDeleted,
					Today:       counts.Today,
					ThisWeek:    counts.LastWeek,
					ThisMonth:   counts.LastMonth,
				})
			}

			printSources := func() error {
				sources, err := store.TopSources(ctx, from, topLimit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "By Source (top %d)\n", topLimit)
				fmt.Fprintln(out, rule(30))
				for _, s := range sources {
					fmt.Fprintf(out, "%-25s %d\n", s.Name, s.ArticleCount)
				}
				return nil
			}

			printTags := func() error {
				tags, err := store.TopTags(ctx, from, topLimit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "By Tag (top %d)\n", topLimit)
				fmt.Fprintln(out, rule(30))
				for _, t := range tags {
					fmt.Fprintf(out, "%-25s %d\n", t.Name, t.ArticleCount)
				}
				return nil
			}

			if sourcesOnly {
				return printSources()
			}
			if tagsOnly {
				return printTags()
			}

			fmt.Fprintln(out, "Article Statistics")
			fmt.Fprintln(out, rule(30))
			fmt.Fprintf(out, "Total articles:   %d\n", counts.Total)
			fmt.Fprintf(out, "Soft-deleted:     %d\n", counts.SoftDeleted)
			fmt.Fprintln(out)

			if err := printSources(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			if err := printTags(); err != nil {
				return err
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Ingestion Rate")
			fmt.Fprintln(out, rule(30))
			fmt.Fprintf(out, "Today:            %d\n", counts.Today)
			fmt.Fprintf(out, "This week:        %d\n", counts.LastWeek)
			fmt.Fprintf(out, "This month:       %d\n", counts.LastMonth)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "time window, e.g. 24h or 7d")
	cmd.Flags().BoolVar(&sourcesOnly, "sources", false, "show only the source breakdown")
	cmd.Flags().BoolVar(&tagsOnly, "tags", false, "show only the tag breakdown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func rule(n int) string {
	return strings.Repeat("─", n)
}
