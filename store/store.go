// Package store defines the narrow persistence contract the planner consumes.
//
// The planner only ever needs bulk distance writes, a full distance scan for
// cache warm-up, record CRUD for minima and transition states, and a
// transactional scope wrapping a single admission. Anything beyond this
// surface is an implementation concern of the backing engine.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("store: transaction already finished")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Tx is an explicit transactional scope. An admission stages its cache
// flushes through a Tx so that a mid-admission failure leaves nothing
// partially committed.
type Tx interface {
	// WriteDistances stages distance entries inside the transaction.
	WriteDistances(entries []model.DistanceEntry) error

	// Commit makes all staged writes durable.
	Commit() error

	// Rollback discards all staged writes. Safe to call after Commit;
	// it is a no-op then.
	Rollback() error
}

// Store owns Minimum and TransitionState records with stable identities and
// the persisted pairwise distances.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Begin opens a transactional scope.
	Begin(ctx context.Context) (Tx, error)

	// BulkWriteDistances persists a batch of distance entries in one shot.
	// Entries overwrite existing values for the same pair.
	BulkWriteDistances(ctx context.Context, entries []model.DistanceEntry) error

	// Distances iterates over all persisted distance entries.
	Distances(ctx context.Context) iter.Seq2[model.DistanceEntry, error]

	// PutMinimum inserts or replaces a minimum record.
	PutMinimum(ctx context.Context, m model.Minimum) error

	// Minimum fetches a minimum by id. Returns ErrNotFound if absent.
	Minimum(ctx context.Context, id core.MinimumID) (model.Minimum, error)

	// Minima iterates over all minimum records.
	Minima(ctx context.Context) iter.Seq2[model.Minimum, error]

	// DeleteMinimum removes a minimum record and any persisted distances
	// referencing it. Deleting an absent minimum is a no-op.
	DeleteMinimum(ctx context.Context, id core.MinimumID) error

	// PutTransitionState inserts or replaces a transition state record.
	PutTransitionState(ctx context.Context, ts model.TransitionState) error

	// TransitionState fetches a transition state by id.
	TransitionState(ctx context.Context, id core.TransitionStateID) (model.TransitionState, error)

	// TransitionStates iterates over all transition state records.
	TransitionStates(ctx context.Context) iter.Seq2[model.TransitionState, error]

	// NextMinimumID allocates a fresh minimum identity.
	NextMinimumID(ctx context.Context) (core.MinimumID, error)

	// NextTransitionStateID allocates a fresh transition state identity.
	NextTransitionStateID(ctx context.Context) (core.TransitionStateID, error)

	// Close releases resources held by the store.
	Close() error
}
