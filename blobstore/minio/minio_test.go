package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/blobstore"
)

// TestStoreIntegration needs a running MinIO instance and skips otherwise.
func TestStoreIntegration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-landgo"

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)

	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "archives/")
	data := []byte("minio snapshot archive payload for ranged reads")

	require.NoError(t, store.Put(ctx, "run-001.lgsnap", data))

	t.Run("OpenAndReadAt", func(t *testing.T) {
		blob, err := store.Open(ctx, "run-001.lgsnap")
		require.NoError(t, err)
		defer blob.Close()

		assert.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 8)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, "snapshot", string(buf[:n]))
	})

	t.Run("List", func(t *testing.T) {
		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, names, "run-001.lgsnap")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "run-001.lgsnap"))

		_, err := store.Open(ctx, "run-001.lgsnap")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		require.NoError(t, store.Delete(ctx, "run-001.lgsnap"))
	})
}
