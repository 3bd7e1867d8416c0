package landgo

import (
	"context"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/codec"
	"github.com/hupe1980/landgo/snapshot"
	"github.com/hupe1980/landgo/store"
	"github.com/hupe1980/landgo/store/badgerstore"
)

// Builder is an immutable fluent builder for sessions. Each method returns
// a new builder with the updated configuration, so partially configured
// builders can be shared safely.
//
// Example:
//
//	s, err := landgo.Memory().
//	    Cartesian().
//	    FlushThreshold(300).
//	    Build(ctx)
type Builder struct {
	makeStore      func(ctx context.Context) (store.Store, bool, error)
	alignFn        align.Func
	flushThreshold int
	codec          codec.Codec
	logger         *Logger
	metrics        MetricsCollector
	snapshotPath   string
	compression    snapshot.Compression
}

// Memory creates a builder backed by the in-memory store. The store lives
// and dies with the session.
func Memory() Builder {
	return Builder{
		makeStore: func(context.Context) (store.Store, bool, error) {
			return store.NewMemoryStore(), true, nil
		},
	}
}

// Badger creates a builder backed by a Badger store at the given path. The
// store is opened during Build and closed with the session.
//
// Example:
//
//	s, err := landgo.Badger("/var/lib/landscape").
//	    Periodic([]float64{10, 10, 10}).
//	    Build(ctx)
func Badger(path string, optFns ...func(o *badgerstore.Options)) Builder {
	return Builder{
		makeStore: func(context.Context) (store.Store, bool, error) {
			st, err := badgerstore.Open(path, optFns...)
			if err != nil {
				return nil, false, err
			}

			return st, true, nil
		},
	}
}

// Store creates a builder on top of a caller-provided store. The caller
// keeps ownership and closes the store after the session.
func Store(st store.Store) Builder {
	return Builder{
		makeStore: func(context.Context) (store.Store, bool, error) {
			return st, false, nil
		},
	}
}

// Cartesian sets plain Euclidean alignment. This is the default.
func (b Builder) Cartesian() Builder {
	b.alignFn = align.Cartesian
	return b
}

// Periodic sets minimum-image alignment for a periodic box with the given
// edge lengths.
func (b Builder) Periodic(box []float64) Builder {
	b.alignFn = align.Periodic(box)
	return b
}

// AlignFunc sets a custom alignment routine, typically a wrapper around an
// external structural alignment code.
func (b Builder) AlignFunc(fn align.Func) Builder {
	b.alignFn = fn
	return b
}

// FlushThreshold sets how many computed distances may queue in memory
// before a bulk write. Default: 300.
func (b Builder) FlushThreshold(n int) Builder {
	b.flushThreshold = n
	return b
}

// Codec sets the codec for snapshot encoding.
func (b Builder) Codec(c codec.Codec) Builder {
	b.codec = c
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// SnapshotPath sets the default path for SaveSnapshot.
func (b Builder) SnapshotPath(path string) Builder {
	b.snapshotPath = path
	return b
}

// Compression sets the snapshot payload compression. Default: zstd.
func (b Builder) Compression(c snapshot.Compression) Builder {
	b.compression = c
	return b
}

// Build creates the session.
func (b Builder) Build(ctx context.Context) (*Session, error) {
	st, owned, err := b.makeStore(ctx)
	if err != nil {
		return nil, err
	}

	alignFn := b.alignFn
	if alignFn == nil {
		alignFn = align.Cartesian
	}

	var opts []Option

	if b.codec != nil {
		opts = append(opts, WithCodec(b.codec))
	}
	if b.flushThreshold > 0 {
		opts = append(opts, WithFlushThreshold(b.flushThreshold))
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.snapshotPath != "" {
		opts = append(opts, WithSnapshotPath(b.snapshotPath))
	}
	if b.compression != "" {
		opts = append(opts, WithCompression(b.compression))
	}

	s, err := open(ctx, st, owned, alignFn, opts)
	if err != nil {
		if owned {
			_ = st.Close()
		}

		return nil, err
	}

	return s, nil
}

// MustBuild creates the session, panicking on error.
func (b Builder) MustBuild(ctx context.Context) *Session {
	s, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}

	return s
}
