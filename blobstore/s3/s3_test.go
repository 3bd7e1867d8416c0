package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/blobstore"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.HeadObjectOutput), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.ListObjectsV2Output), args.Error(1)
	}

	return nil, args.Error(1)
}

func TestStoreOpen(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		client := new(mockClient)
		store := NewStore(client, "bucket", "prefix")

		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "bucket" && *input.Key == "prefix/missing.lgsnap"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "missing.lgsnap")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		client := new(mockClient)
		store := NewStore(client, "bucket", "prefix")

		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prefix/run.lgsnap"
		})).Return(&s3.HeadObjectOutput{
			ContentLength: aws.Int64(128),
		}, nil).Once()

		blob, err := store.Open(context.Background(), "run.lgsnap")
		require.NoError(t, err)
		assert.Equal(t, int64(128), blob.Size())
	})
}

func TestStorePut(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "prefix")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "bucket" && *input.Key == "prefix/run.lgsnap"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "run.lgsnap", []byte("payload")))
	client.AssertExpectations(t)
}

func TestStoreDelete(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "prefix")

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Key == "prefix/run.lgsnap"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, store.Delete(context.Background(), "run.lgsnap"))
	client.AssertExpectations(t)
}

func TestStoreList(t *testing.T) {
	t.Run("StripsRootPrefix", func(t *testing.T) {
		client := new(mockClient)
		store := NewStore(client, "bucket", "prefix/")

		client.On("ListObjectsV2", mock.Anything, mock.Anything).Return(&s3.ListObjectsV2Output{
			Contents: []types.Object{
				{Key: aws.String("prefix/file1")},
				{Key: aws.String("prefix/dir/file2")},
			},
		}, nil).Once()

		names, err := store.List(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"dir/file2", "file1"}, names)
	})

	t.Run("Pagination", func(t *testing.T) {
		client := new(mockClient)
		store := NewStore(client, "bucket", "prefix/")

		client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
			return input.ContinuationToken == nil
		})).Return(&s3.ListObjectsV2Output{
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("token"),
			Contents:              []types.Object{{Key: aws.String("prefix/1")}},
		}, nil).Once()

		client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
			return input.ContinuationToken != nil && *input.ContinuationToken == "token"
		})).Return(&s3.ListObjectsV2Output{
			IsTruncated: aws.Bool(false),
			Contents:    []types.Object{{Key: aws.String("prefix/2")}},
		}, nil).Once()

		names, err := store.List(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, names)
	})
}

func TestBlobReadAt(t *testing.T) {
	t.Run("RangedGet", func(t *testing.T) {
		client := new(mockClient)
		blob := &s3Blob{client: client, bucket: "b", key: "k", size: 10}

		client.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Range == "bytes=0-4"
		})).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader("hello")),
		}, nil).Once()

		buf := make([]byte, 5)
		n, err := blob.ReadAt(context.Background(), buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf))
	})

	t.Run("ReadPastEnd", func(t *testing.T) {
		client := new(mockClient)
		blob := &s3Blob{client: client, bucket: "b", key: "k", size: 10}

		client.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Range == "bytes=6-9"
		})).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader("tail")),
		}, nil).Once()

		buf := make([]byte, 8)
		n, err := blob.ReadAt(context.Background(), buf, 6)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 4, n)
		assert.Equal(t, "tail", string(buf[:n]))
	})

	t.Run("OffsetBeyondSize", func(t *testing.T) {
		blob := &s3Blob{client: new(mockClient), bucket: "b", key: "k", size: 10}

		_, err := blob.ReadAt(context.Background(), make([]byte, 4), 10)
		assert.ErrorIs(t, err, io.EOF)
	})
}
