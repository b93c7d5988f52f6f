// Package opsserver serves the operational endpoints of long-running commands.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"news_ingest/internal/domain"
	"news_ingest/internal/metrics"
)

type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type StatsProvider interface {
	Stats() domain.SubscriberStats
}

type RouterDeps struct {
	Gatherer prometheus.Gatherer
	// Health is optional; without it /healthz always reports ok.
	Health HealthChecker
	// Stats is optional; without it /stats is not mounted.
	Stats StatsProvider
}

// NewRouter mounts /metrics, /healthz and, when a stats provider is set, /stats.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	r.Get("/healthz", healthHandler(deps.Health))

	if deps.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			st := deps.Stats.Stats()
			writeJSON(w, http.StatusOK, map[string]int64{
				"processed": st.Processed,
				"skipped":   st.Skipped,
				"errors":    st.Errors,
			})
		})
	}

	return r
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
