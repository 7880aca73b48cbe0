// Package prommetrics exports index operation metrics to Prometheus.
package prommetrics

import (
	"errors"
	"time"

	"github.com/hupe1980/hnswgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ hnswgo.MetricsCollector = (*Collector)(nil)

var errBatchFailed = errors.New("batch insert failed")

// Collector implements hnswgo.MetricsCollector with Prometheus counters and histograms.
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	batchItems *prometheus.CounterVec
	searchK    prometheus.Histogram
}

// Options configures metric names.
type Options struct {
	// Namespace prefixes every metric name. Default: "hnswgo".
	Namespace string
	// ConstLabels are attached to every metric, e.g. {"index": "faces"}.
	ConstLabels prometheus.Labels
	// Buckets overrides the latency histogram buckets (seconds).
	Buckets []float64
}

// New registers the collector's metrics with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func New(reg prometheus.Registerer, optFns ...func(*Options)) *Collector {
	opts := Options{
		Namespace: "hnswgo",
		// From sub-millisecond single queries to multi-second batch builds.
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	factory := promauto.With(reg)

	return &Collector{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "operations_total",
				Help:        "Total number of index operations, labeled by operation and status.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"op", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "operation_duration_seconds",
				Help:        "Duration of index operations in seconds.",
				ConstLabels: opts.ConstLabels,
				Buckets:     opts.Buckets,
			},
			[]string{"op"},
		),
		batchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "batch_insert_items_total",
				Help:        "Vectors submitted through batch inserts, labeled by status.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"status"},
		),
		searchK: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "search_k",
				Help:        "Number of neighbors requested per search.",
				ConstLabels: opts.ConstLabels,
				Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.operations.WithLabelValues(op, status(err)).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordInsert implements hnswgo.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordBatchInsert implements hnswgo.MetricsCollector.
func (c *Collector) RecordBatchInsert(count, failed int, d time.Duration) {
	var err error
	if failed > 0 {
		err = errBatchFailed
	}
	c.observe("batch_insert", d, err)
	c.batchItems.WithLabelValues("ok").Add(float64(count - failed))
	c.batchItems.WithLabelValues("error").Add(float64(failed))
}

// RecordSearch implements hnswgo.MetricsCollector.
func (c *Collector) RecordSearch(k int, d time.Duration, err error) {
	c.observe("search", d, err)
	c.searchK.Observe(float64(k))
}

// RecordDelete implements hnswgo.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}
