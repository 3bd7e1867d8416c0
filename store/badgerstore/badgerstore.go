// Package badgerstore persists planner records in an embedded Badger
// database.
//
// Records and distances live under distinct key prefixes with codec-encoded
// values, so a database stays inspectable with standard Badger tooling.
// Identity counters are stored alongside the records, which keeps a reopened
// database allocating past the highest id it ever held.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/landgo/codec"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

// Key layout. Ids are big endian so iteration order is id order.
var (
	prefixMinimum    = []byte("m:")
	prefixTransition = []byte("t:")
	prefixDistance   = []byte("d:")
	keyMinimumSeq    = []byte("c:min")
	keyTransitionSeq = []byte("c:ts")
)

// errStop aborts a View from inside an iterator without reporting an error.
var errStop = errors.New("badgerstore: stop iteration")

// Options configures the store.
type Options struct {
	// InMemory keeps all data in memory. The path is ignored. Intended for
	// tests.
	InMemory bool

	// SyncWrites makes every commit wait for the value log fsync.
	SyncWrites bool

	// Codec encodes record values. Defaults to codec.Default.
	Codec codec.Codec

	// Logger receives Badger's internal log output and garbage collection
	// events. When nil, Badger's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs. Zero
	// disables it. Ignored for in-memory databases.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction of a value log
	// file before it is rewritten.
	GCDiscardRatio float64
}

// DefaultOptions are the defaults used by Open.
var DefaultOptions = Options{
	SyncWrites:     true,
	GCInterval:     5 * time.Minute,
	GCDiscardRatio: 0.5,
}

// Store is a Badger-backed planner store.
type Store struct {
	db        *badger.DB
	codec     codec.Codec
	gc        *gcRunner
	closeOnce sync.Once
	closeErr  error
}

// Compile-time check that the persistence contract is satisfied.
var _ store.Store = (*Store)(nil)

// Open opens the database directory at path, creating it if needed.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	o := DefaultOptions

	for _, fn := range optFns {
		fn(&o)
	}

	if o.Codec == nil {
		o.Codec = codec.Default
	}

	var badgerOpts badger.Options
	if o.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, errors.New("badgerstore: path is required for a persistent database")
		}

		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create database directory %s: %w", path, err)
		}

		badgerOpts = badger.DefaultOptions(path)
	}

	badgerOpts = badgerOpts.WithSyncWrites(o.SyncWrites)
	badgerOpts = badgerOpts.WithNumVersionsToKeep(1)

	if o.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{logger: o.Logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open database: %w", err)
	}

	s := &Store{
		db:    db,
		codec: o.Codec,
	}

	if o.GCInterval > 0 && !o.InMemory {
		s.gc = startGC(db, o.GCInterval, o.GCDiscardRatio, o.Logger)
	}

	return s, nil
}

// OpenInMemory opens a database that lives entirely in memory. Data is lost
// on Close.
func OpenInMemory(optFns ...func(o *Options)) (*Store, error) {
	return Open("", append([]func(o *Options){func(o *Options) {
		o.InMemory = true
		o.SyncWrites = false
		o.GCInterval = 0
	}}, optFns...)...)
}

// Begin opens a transactional scope for staged distance writes.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.db.IsClosed() {
		return nil, store.ErrClosed
	}

	return &badgerTx{st: s, txn: s.db.NewTransaction(true)}, nil
}

// BulkWriteDistances persists a batch of distance entries through a write
// batch, which skips conflict detection and batches value log writes.
func (s *Store) BulkWriteDistances(ctx context.Context, entries []model.DistanceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		val, err := s.codec.Marshal(e)
		if err != nil {
			return err
		}

		if err := wb.Set(distanceKey(e.Pair), val); err != nil {
			return mapErr(err)
		}
	}

	return mapErr(wb.Flush())
}

// Distances iterates over all persisted distance entries.
func (s *Store) Distances(ctx context.Context) iter.Seq2[model.DistanceEntry, error] {
	return func(yield func(model.DistanceEntry, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			return scan(ctx, txn, prefixDistance, func(item *badger.Item) error {
				var e model.DistanceEntry
				if err := s.decodeItem(item, &e); err != nil {
					return err
				}

				if !yield(e, nil) {
					return errStop
				}

				return nil
			})
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(model.DistanceEntry{}, mapErr(err))
		}
	}
}

// PutMinimum inserts or replaces a minimum record.
func (s *Store) PutMinimum(ctx context.Context, m model.Minimum) error {
	val, err := s.codec.Marshal(m)
	if err != nil {
		return err
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(minimumKey(m.ID), val); err != nil {
			return err
		}

		return bumpCounter(txn, keyMinimumSeq, uint32(m.ID)+1)
	})
}

// Minimum fetches a minimum by id.
func (s *Store) Minimum(ctx context.Context, id core.MinimumID) (model.Minimum, error) {
	var m model.Minimum

	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(minimumKey(id))
		if err != nil {
			return err
		}

		return s.decodeItem(item, &m)
	})
	if err != nil {
		return model.Minimum{}, err
	}

	return m, nil
}

// Minima iterates over all minimum records in id order.
func (s *Store) Minima(ctx context.Context) iter.Seq2[model.Minimum, error] {
	return func(yield func(model.Minimum, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			return scan(ctx, txn, prefixMinimum, func(item *badger.Item) error {
				var m model.Minimum
				if err := s.decodeItem(item, &m); err != nil {
					return err
				}

				if !yield(m, nil) {
					return errStop
				}

				return nil
			})
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(model.Minimum{}, mapErr(err))
		}
	}
}

// DeleteMinimum removes a minimum record and every persisted distance
// referencing it. Deleting an absent minimum is a no-op.
func (s *Store) DeleteMinimum(ctx context.Context, id core.MinimumID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(minimumKey(id)); err != nil {
			return err
		}

		// Canonical pairs scatter the id across both key halves, so a full
		// prefix scan is needed. Keys only, values stay on disk.
		var stale [][]byte

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)

		for it.Seek(prefixDistance); it.ValidForPrefix(prefixDistance); it.Next() {
			key := it.Item().Key()
			p := core.PairFromKey(binary.BigEndian.Uint64(key[len(prefixDistance):]))

			if p.Contains(id) {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}

		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// PutTransitionState inserts or replaces a transition state record.
func (s *Store) PutTransitionState(ctx context.Context, ts model.TransitionState) error {
	val, err := s.codec.Marshal(ts)
	if err != nil {
		return err
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(transitionKey(ts.ID), val); err != nil {
			return err
		}

		return bumpCounter(txn, keyTransitionSeq, uint32(ts.ID)+1)
	})
}

// TransitionState fetches a transition state by id.
func (s *Store) TransitionState(ctx context.Context, id core.TransitionStateID) (model.TransitionState, error) {
	var ts model.TransitionState

	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(transitionKey(id))
		if err != nil {
			return err
		}

		return s.decodeItem(item, &ts)
	})
	if err != nil {
		return model.TransitionState{}, err
	}

	return ts, nil
}

// TransitionStates iterates over all transition state records in id order.
func (s *Store) TransitionStates(ctx context.Context) iter.Seq2[model.TransitionState, error] {
	return func(yield func(model.TransitionState, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			return scan(ctx, txn, prefixTransition, func(item *badger.Item) error {
				var ts model.TransitionState
				if err := s.decodeItem(item, &ts); err != nil {
					return err
				}

				if !yield(ts, nil) {
					return errStop
				}

				return nil
			})
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(model.TransitionState{}, mapErr(err))
		}
	}
}

// NextMinimumID allocates a fresh minimum identity.
func (s *Store) NextMinimumID(ctx context.Context) (core.MinimumID, error) {
	var id core.MinimumID

	err := s.update(ctx, func(txn *badger.Txn) error {
		next, err := counterNext(txn, keyMinimumSeq)
		if err != nil {
			return err
		}

		id = core.MinimumID(next)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// NextTransitionStateID allocates a fresh transition state identity.
func (s *Store) NextTransitionStateID(ctx context.Context) (core.TransitionStateID, error) {
	var id core.TransitionStateID

	err := s.update(ctx, func(txn *badger.Txn) error {
		next, err := counterNext(txn, keyTransitionSeq)
		if err != nil {
			return err
		}

		id = core.TransitionStateID(next)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// Close stops garbage collection and closes the database. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}

		s.closeErr = s.db.Close()
	})

	return s.closeErr
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return mapErr(err)
		}
	}
}

// view runs fn in a read-only transaction.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return mapErr(s.db.View(fn))
}

func (s *Store) decodeItem(item *badger.Item, v any) error {
	return item.Value(func(val []byte) error {
		return s.codec.Unmarshal(val, v)
	})
}

// scan walks all keys under prefix, invoking fn per item.
func scan(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(it.Item()); err != nil {
			return err
		}
	}

	return nil
}

// counterNext returns the counter's current value and advances it. Counters
// start at 1.
func counterNext(txn *badger.Txn, key []byte) (uint32, error) {
	cur, err := readCounter(txn, key)
	if err != nil {
		return 0, err
	}

	if err := writeCounter(txn, key, cur+1); err != nil {
		return 0, err
	}

	return cur, nil
}

// bumpCounter raises the counter to floor if it is below it, so restored
// records never collide with future allocations.
func bumpCounter(txn *badger.Txn, key []byte, floor uint32) error {
	cur, err := readCounter(txn, key)
	if err != nil {
		return err
	}

	if floor <= cur {
		return nil
	}

	return writeCounter(txn, key, floor)
}

func readCounter(txn *badger.Txn, key []byte) (uint32, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}

	if err != nil {
		return 0, err
	}

	var cur uint32

	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("badgerstore: corrupt counter %q", key)
		}

		cur = binary.BigEndian.Uint32(val)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return cur, nil
}

func writeCounter(txn *badger.Txn, key []byte, val uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], val)

	return txn.Set(key, buf[:])
}

func minimumKey(id core.MinimumID) []byte {
	key := make([]byte, len(prefixMinimum)+4)
	copy(key, prefixMinimum)
	binary.BigEndian.PutUint32(key[len(prefixMinimum):], uint32(id))

	return key
}

func transitionKey(id core.TransitionStateID) []byte {
	key := make([]byte, len(prefixTransition)+4)
	copy(key, prefixTransition)
	binary.BigEndian.PutUint32(key[len(prefixTransition):], uint32(id))

	return key
}

func distanceKey(p core.Pair) []byte {
	key := make([]byte, len(prefixDistance)+8)
	copy(key, prefixDistance)
	binary.BigEndian.PutUint64(key[len(prefixDistance):], p.Key())

	return key
}

// mapErr translates Badger sentinels into the store package's contract.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return store.ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return store.ErrClosed
	default:
		return err
	}
}

// badgerTx stages distance writes in a Badger read-write transaction.
type badgerTx struct {
	st   *Store
	txn  *badger.Txn
	mu   sync.Mutex
	done bool
}

// Compile-time check that the transactional contract is satisfied.
var _ store.Tx = (*badgerTx)(nil)

// WriteDistances stages distance entries inside the transaction.
func (t *badgerTx) WriteDistances(entries []model.DistanceEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return store.ErrTxDone
	}

	for _, e := range entries {
		val, err := t.st.codec.Marshal(e)
		if err != nil {
			return err
		}

		if err := t.txn.Set(distanceKey(e.Pair), val); err != nil {
			return mapErr(err)
		}
	}

	return nil
}

// Commit makes all staged writes durable.
func (t *badgerTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return store.ErrTxDone
	}

	t.done = true

	return mapErr(t.txn.Commit())
}

// Rollback discards all staged writes. After Commit it is a no-op.
func (t *badgerTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}

	t.done = true
	t.txn.Discard()

	return nil
}
