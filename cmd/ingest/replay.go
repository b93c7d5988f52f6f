package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"news_ingest/internal/replay"
	"news_ingest/internal/storage/postgres"
)

func replayCmd(configPath *string) *cobra.Command {
	var (
		opts    replay.Options
		dryRun  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run stored articles through the processor chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.ID == 0 && opts.Since == "" {
				return replay.ErrNoSelection
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			out := cmd.OutOrStdout()
			replayer := replay.New(postgres.NewArticleStore(a.db), a.pipeline(), a.logger).WithOutput(out)

			articles, err := replayer.Select(ctx, opts)
			if err != nil {
				return err
			}

			if len(articles) == 0 {
				fmt.Fprintln(out, "No articles found matching criteria.")
				return nil
			}

			if dryRun {
				fmt.Fprintf(out, "%d article(s) would be replayed:\n", len(articles))
				for _, article := range articles {
					fmt.Fprintf(out, "  [%d] %s\n", article.ID, article.Title)
				}
				return nil
			}

			fmt.Fprintf(out, "Replaying %d article(s)...\n", len(articles))
			stats := replayer.Run(ctx, articles, opts.Full, verbose)
			fmt.Fprintf(out, "Done. Processed: %d, Errors: %d\n", stats.Processed, stats.Errors)

			if stats.Errors > 0 {
				return fmt.Errorf("%d article(s) failed to replay", stats.Errors)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.ID, "id", 0, "replay a single article by id")
	cmd.Flags().StringVar(&opts.Since, "since", "", "replay articles created within a window, e.g. 24h or 7d")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "mark payloads for a full re-process")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the selected articles without replaying them")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each replayed article")

	return cmd
}
