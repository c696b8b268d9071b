package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/hupe1980/thumbgrid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements thumbgrid.MetricsCollector.
type PrometheusCollector struct {
	settles       prometheus.Counter
	tasks         *prometheus.CounterVec
	decodeLatency *prometheus.HistogramVec
	superseded    prometheus.Counter
	batchSize     prometheus.Histogram
	batchFailed   prometheus.Counter
	repaints      prometheus.Counter
	cacheCapacity prometheus.Gauge
}

var _ thumbgrid.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector and registers it with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		settles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thumbgrid_settles_total",
			Help: "Total planned generations",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thumbgrid_tasks_total",
			Help: "Planned load tasks by cache outcome",
		}, []string{"cache"}),
		decodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thumbgrid_decode_latency_seconds",
			Help:    "Latency of thumbnail decodes",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thumbgrid_superseded_results_total",
			Help: "Results dropped because a newer generation started",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thumbgrid_batch_size",
			Help:    "Results per batch delivered to the sink",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		batchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thumbgrid_failed_results_total",
			Help: "Failed decodes delivered to the sink",
		}),
		repaints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thumbgrid_repaints_total",
			Help: "Repaint requests",
		}),
		cacheCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thumbgrid_cache_capacity",
			Help: "Current thumbnail cache capacity in cost units",
		}),
	}

	reg.MustRegister(
		c.settles,
		c.tasks,
		c.decodeLatency,
		c.superseded,
		c.batchSize,
		c.batchFailed,
		c.repaints,
		c.cacheCapacity,
	)
	return c
}

func (c *PrometheusCollector) RecordSettle(tasks, hits int) {
	c.settles.Inc()
	c.tasks.WithLabelValues("hit").Add(float64(hits))
	c.tasks.WithLabelValues("miss").Add(float64(tasks - hits))
}

func (c *PrometheusCollector) RecordDecode(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.decodeLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordSuperseded() {
	c.superseded.Inc()
}

func (c *PrometheusCollector) RecordBatch(size, failed int) {
	c.batchSize.Observe(float64(size))
	c.batchFailed.Add(float64(failed))
}

func (c *PrometheusCollector) RecordRepaint() {
	c.repaints.Inc()
}

func (c *PrometheusCollector) RecordCacheCapacity(capacity int64) {
	c.cacheCapacity.Set(float64(capacity))
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *thumbgrid.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics available", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
