package hnswgo

import (
	"log/slog"

	"github.com/hupe1980/hnswgo/internal/resource"
	"github.com/hupe1980/hnswgo/persistence"
)

// ResourceController bounds batch workers, managed memory and snapshot IO.
// A controller may be shared by several indexes.
type ResourceController = resource.Controller

// ResourceConfig holds the limits of a ResourceController.
type ResourceConfig = resource.Config

// NewResourceController creates a controller with the given limits.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	compression      persistence.Compression
}

// Option configures ambient collaborators of an Index.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hnswgo.BasicMetricsCollector{}
//	idx, _ := hnswgo.NewIndex(cfg, hnswgo.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.Stats()
//	fmt.Printf("inserts: %d, mean latency: %s\n", stats.Insert.Count, stats.Insert.Mean)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hnswgo.NewJSONLogger(slog.LevelInfo)
//	idx, _ := hnswgo.NewIndex(cfg, hnswgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares a resource controller between indexes.
// Config.NumThreads, when set, resizes its worker pool.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithCompression sets the body compression used by Serialize and WriteTo.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      persistence.CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
