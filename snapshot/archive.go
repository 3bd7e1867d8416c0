package snapshot

import (
	"context"

	"github.com/hupe1980/landgo/blobstore"
)

// Archive encodes the state and uploads it to the blob store under name.
// Object stores write atomically per key, so a reader never fetches a
// half-written archive.
func Archive(ctx context.Context, bs blobstore.Store, name string, state *State, optFns ...func(o *Options)) error {
	data, err := Encode(state, optFns...)
	if err != nil {
		return err
	}

	return bs.Put(ctx, name, data)
}

// Fetch downloads and decodes an archived snapshot.
func Fetch(ctx context.Context, bs blobstore.Store, name string) (*State, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}
