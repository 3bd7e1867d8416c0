package landgo

import (
	"log/slog"

	"github.com/hupe1980/landgo/codec"
	"github.com/hupe1980/landgo/snapshot"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	flushThreshold   int
	snapshotPath     string // Path for explicit snapshot saves
	compression      snapshot.Compression
}

// Option configures session construction behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec used for snapshot sections.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithFlushThreshold configures how many freshly computed distances may
// accumulate in memory before they are flushed to the store in bulk.
//
// Lower values bound the amount of recomputation after a crash, higher
// values amortize store round trips better. The default of 300 suits
// exploration runs where a single admission computes tens of distances.
func WithFlushThreshold(n int) Option {
	return func(o *options) {
		o.flushThreshold = n
	}
}

// WithSnapshotPath configures the default path used by SaveSnapshot when
// called with an empty filename.
func WithSnapshotPath(path string) Option {
	return func(o *options) {
		o.snapshotPath = path
	}
}

// WithCompression configures the compression applied to snapshot sections.
func WithCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &landgo.BasicMetricsCollector{}
//	s, _ := landgo.Memory().Cartesian().Metrics(metrics).Build(ctx)
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Admits: %d, Avg latency: %dns\n", stats.AdmitCount, stats.AdmitAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := landgo.NewJSONLogger(slog.LevelInfo)
//	s, _ := landgo.Open(ctx, st, align.Cartesian, landgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
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

func applyOptions(optFns []Option) options {
	o := options{
		codec:            nil,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      snapshot.CompressionZstd,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
