package landgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/distgraph"
	"github.com/hupe1980/landgo/store"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")

	// ErrNotAdmitted is returned when an operation references a minimum
	// that has not been admitted to the planning graph.
	ErrNotAdmitted = errors.New("minimum not admitted")

	// ErrClosed is returned when the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNoSnapshotPath is returned by SaveSnapshot when no filename was
	// given and no default path is configured.
	ErrNoSnapshotPath = errors.New("no snapshot path configured")
)

// ErrAlignFailed indicates that the external alignment routine rejected a
// coordinate pair.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrAlignFailed struct {
	LenA  int
	LenB  int
	cause error
}

func (e *ErrAlignFailed) Error() string {
	return fmt.Sprintf("alignment failed: coords length %d vs %d", e.LenA, e.LenB)
}

func (e *ErrAlignFailed) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Admission state normalization.
	if errors.Is(err, distgraph.ErrNotAdmitted) {
		return fmt.Errorf("%w: %w", ErrNotAdmitted, err)
	}

	// Closed store surfaces as a closed session.
	if errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	var cm *align.ErrCoordsMismatch
	if errors.As(err, &cm) {
		return &ErrAlignFailed{LenA: cm.LenA, LenB: cm.LenB, cause: err}
	}

	return err
}
