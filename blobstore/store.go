// Package blobstore abstracts storage of immutable snapshot archives.
//
// An archive is written once and never modified, which keeps the interface
// small: whole-blob Put, ranged reads through Blob, Delete and List. The
// local implementation memory-maps archives for zero-copy reads; the s3 and
// minio subpackages target object storage, and CachingStore adds block-level
// read caching in front of a remote backend.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
// The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is the interface for reading and writing archives.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically. A reader never observes a partially
	// written blob under the given name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an archive.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off. Returns io.EOF when the
	// read reaches the end of the blob.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	// Close releases the handle.
	Close() error
}

// Mappable is an optional interface for Blobs that expose their content as
// a byte slice without copying. The slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll reads the entire blob into memory, using the zero-copy path when
// the blob supports it.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}

		// The mapping dies with the blob, so hand out a copy.
		out := make([]byte, len(data))
		copy(out, data)

		return out, nil
	}

	out := make([]byte, b.Size())

	n, err := b.ReadAt(ctx, out, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return out[:n], nil
}
