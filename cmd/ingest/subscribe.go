package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"news_ingest/internal/events"
	"news_ingest/internal/opsserver"
	"news_ingest/internal/queue"
	"news_ingest/internal/subscriber"
)

func subscribeCmd(configPath *string) *cobra.Command {
	var (
		channels string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to article channels and ingest incoming payloads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			dispatcher := a.events()
			if detailed {
				printDetails(dispatcher, cmd.OutOrStdout())
			}

			transport := redisTransport(a.cfg)
			defer transport.Close()

			deps := subscriber.Deps{
				Transport: transport,
				Events:    dispatcher,
				Recorder:  a.metrics,
			}

			sync := a.cfg.SyncProcessing()
			if sync {
				pl := a.pipeline()
				a.logger.Info("processor chain", "processors", pl.Names())
				deps.Job = subscriber.NewArticleJob(pl, dispatcher, a.logger)
			} else {
				q, err := a.queue()
				if err != nil {
					return err
				}
				defer q.Close()
				deps.Queue = q
			}

			sub, err := subscriber.New(deps, subscriber.Config{
				Channels: a.cfg.Channels(channels),
				Quality: subscriber.QualityFilter{
					Enabled:  a.cfg.Quality.Enabled,
					MinScore: a.cfg.Quality.MinScore,
				},
				Sync: sync,
			}, a.logger)
			if err != nil {
				return err
			}

			if addr := a.cfg.Metrics.Addr; addr != "" {
				router := opsserver.NewRouter(opsserver.RouterDeps{
					Gatherer: a.registry,
					Health:   a.db,
					Stats:    sub,
				})
				go func() {
					if err := opsserver.Serve(ctx, addr, router, a.logger); err != nil {
						a.logger.Error("ops server error", "error", err)
					}
				}()
			}

			if err := sub.Run(ctx); err != nil {
				return err
			}

			st := sub.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Subscriber shutdown summary:")
			fmt.Fprintf(out, "  Processed: %d\n", st.Processed)
			fmt.Fprintf(out, "  Skipped:   %d\n", st.Skipped)
			fmt.Fprintf(out, "  Errors:    %d\n", st.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&channels, "channels", "", "comma-separated channels, overrides the config")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "print each processed article")

	return cmd
}

// printDetails writes one console line per skipped or processed article.
func printDetails(dispatcher *events.Dispatcher, out io.Writer) {
	dispatcher.Listen(events.NameArticleSkipped, func(_ context.Context, e events.Event) {
		if skipped, ok := e.(events.ArticleSkipped); ok {
			fmt.Fprintf(out, "  Skipped (quality %s < %g): %s\n",
				skipped.Payload.String("quality_score"), skipped.MinScore, skipped.Payload.Title())
		}
	})
	dispatcher.Listen(events.NameArticleProcessed, func(_ context.Context, e events.Event) {
		if processed, ok := e.(events.ArticleProcessed); ok {
			fmt.Fprintf(out, "  Processed: %s\n", processed.Article.Title)
		}
	})
}

func workerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run queued article payloads through the processor chain",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			q, err := a.queue()
			if err != nil {
				return err
			}
			defer q.Close()

			pl := a.pipeline()
			job := subscriber.NewArticleJob(pl, a.events(), a.logger)
			a.logger.Info("starting worker", "processors", pl.Names())

			if addr := a.cfg.Metrics.Addr; addr != "" {
				router := opsserver.NewRouter(opsserver.RouterDeps{Gatherer: a.registry, Health: a.db})
				go func() {
					if err := opsserver.Serve(ctx, addr, router, a.logger); err != nil {
						a.logger.Error("ops server error", "error", err)
					}
				}()
			}

			err = q.Consume(ctx, func(ctx context.Context, j queue.Job) error {
				_, err := job.Process(ctx, j.Payload)
				return err
			})
			if err != nil {
				return fmt.Errorf("consume jobs: %w", err)
			}
			return nil
		},
	}
}
