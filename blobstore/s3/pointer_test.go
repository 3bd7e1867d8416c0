package s3

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/blobstore"
)

// fakeDDBClient is an in-memory DynamoDB double for the commit pointer.
type fakeDDBClient struct {
	mu         sync.Mutex
	items      map[string]map[string]types.AttributeValue // landscape:version -> item
	rejectPuts int
}

func newFakeDDBClient() *fakeDDBClient {
	return &fakeDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	landscape := params.Item["landscape"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := landscape + ":" + version

	if f.rejectPuts > 0 {
		f.rejectPuts--

		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}

	if params.ConditionExpression != nil {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	f.items[key] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	landscape := params.ExpressionAttributeValues[":l"].(*types.AttributeValueMemberS).Value

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if item["landscape"].(*types.AttributeValueMemberS).Value == landscape {
			matched = append(matched, item)
		}
	}

	// Descending by numeric version.
	sort.Slice(matched, func(i, j int) bool {
		vi := matched[i]["version"].(*types.AttributeValueMemberN).Value
		vj := matched[j]["version"].(*types.AttributeValueMemberN).Value

		if len(vi) != len(vj) {
			return len(vi) > len(vj)
		}

		return vi > vj
	})

	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: matched}, nil
}

func TestPointerCommitAndLatest(t *testing.T) {
	ctx := context.Background()
	client := newFakeDDBClient()
	ptr := NewPointer(client, "commits", "neb-cluster")

	t.Run("EmptyLandscape", func(t *testing.T) {
		_, _, err := ptr.Latest(ctx)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("VersionsAdvance", func(t *testing.T) {
		v1, err := ptr.Commit(ctx, "snapshots/run-001")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v1)

		v2, err := ptr.Commit(ctx, "snapshots/run-002")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v2)

		name, version, err := ptr.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "snapshots/run-002", name)
		assert.Equal(t, uint64(2), version)
	})

	t.Run("LandscapesAreIsolated", func(t *testing.T) {
		other := NewPointer(client, "commits", "other")

		_, _, err := other.Latest(ctx)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestPointerConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	client := newFakeDDBClient()
	ptr := NewPointer(client, "commits", "neb-cluster")

	_, err := ptr.Commit(ctx, "snapshots/run-001")
	require.NoError(t, err)

	// A racing writer claimed the next version between our read and write.
	client.rejectPuts = 1

	_, err = ptr.Commit(ctx, "snapshots/run-002")
	assert.ErrorIs(t, err, ErrConcurrentCommit)

	// The retry goes through.
	v, err := ptr.Commit(ctx, "snapshots/run-002")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}
