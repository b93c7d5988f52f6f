// Package metrics exposes ingestion and subscriber counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message results recorded by the subscriber.
const (
	ResultProcessed = "processed"
	ResultSkipped   = "skipped"
	ResultError     = "error"
)

type Collector struct {
	ingestOutcomes   *prometheus.CounterVec
	messages         *prometheus.CounterVec
	reconnects       prometheus.Counter
	pipelineDuration prometheus.Histogram
	queued           prometheus.Counter
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "news_ingest_articles_total",
			Help: "Ingestion attempts by outcome.",
		}, []string{"outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "news_ingest_messages_total",
			Help: "Subscriber messages by result.",
		}, []string{"result"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_ingest_reconnects_total",
			Help: "Subscriber reconnections.",
		}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "news_ingest_pipeline_duration_seconds",
			Help:    "Time spent running the processor pipeline for one payload.",
			Buckets: prometheus.DefBuckets,
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_ingest_queued_total",
			Help: "Payloads handed to the work queue.",
		}),
	}

	reg.MustRegister(
		c.ingestOutcomes,
		c.messages,
		c.reconnects,
		c.pipelineDuration,
		c.queued,
	)

	return c
}

func (c *Collector) RecordIngest(outcome string) {
	c.ingestOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordMessage(result string) {
	c.messages.WithLabelValues(result).Inc()
}

func (c *Collector) RecordReconnect() {
	c.reconnects.Inc()
}

func (c *Collector) RecordQueued() {
	c.queued.Inc()
}

func (c *Collector) ObservePipeline(d time.Duration) {
	c.pipelineDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
