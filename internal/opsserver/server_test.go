package opsserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"news_ingest/internal/domain"
	"news_ingest/internal/metrics"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type fixedStats domain.SubscriberStats

func (s fixedStats) Stats() domain.SubscriberStats { return domain.SubscriberStats(s) }

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()

	ok := NewRouter(RouterDeps{Gatherer: reg, Health: pingFunc(func(context.Context) error { return nil })})
	w := serve(ok, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	down := NewRouter(RouterDeps{Gatherer: reg, Health: pingFunc(func(context.Context) error { return errors.New("db down") })})
	w = serve(down, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db down")
}

func TestRouter_MetricsAndStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordReconnect()

	h := NewRouter(RouterDeps{Gatherer: reg, Stats: fixedStats{Processed: 3, Skipped: 1, Errors: 2}})

	w := serve(h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "news_ingest_reconnects_total 1")

	w = serve(h, "/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"processed":3,"skipped":1,"errors":2}`, w.Body.String())
}

func TestRouter_StatsNotMountedWithoutProvider(t *testing.T) {
	h := NewRouter(RouterDeps{Gatherer: prometheus.NewRegistry()})

	assert.Equal(t, http.StatusNotFound, serve(h, "/stats").Code)
}
