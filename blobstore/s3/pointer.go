package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/landgo/blobstore"
)

// ErrConcurrentCommit is returned when another writer claimed the version
// first. The caller re-reads Latest and retries.
var ErrConcurrentCommit = errors.New("s3: concurrent snapshot commit detected")

// DDBClient is the DynamoDB surface the pointer depends on. *dynamodb.Client
// satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Pointer tracks the most recently archived snapshot behind a versioned
// DynamoDB row, giving S3 archives the atomic publish step S3 itself lacks.
// Writers archive under unique names, then race Commit; exactly one claims
// each version. Readers resolve Latest before fetching.
//
// Table schema:
//   - Partition key: landscape (string)
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name landgo-commits \
//	  --attribute-definitions AttributeName=landscape,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=landscape,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Pointer struct {
	client    DDBClient
	table     string
	landscape string
}

// NewPointer creates a commit pointer for one landscape's archives.
func NewPointer(client DDBClient, table, landscape string) *Pointer {
	return &Pointer{
		client:    client,
		table:     table,
		landscape: landscape,
	}
}

// Latest returns the archive name and version of the newest commit. Returns
// blobstore.ErrNotFound when nothing has been committed yet.
func (p *Pointer) Latest(ctx context.Context) (string, uint64, error) {
	resp, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.table),
		KeyConditionExpression: aws.String("landscape = :l"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":l": &types.AttributeValueMemberS{Value: p.landscape},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return "", 0, fmt.Errorf("s3: query latest commit: %w", err)
	}

	if len(resp.Items) == 0 {
		return "", 0, blobstore.ErrNotFound
	}

	item := resp.Items[0]

	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return "", 0, errors.New("s3: missing version attribute in commit row")
	}

	archiveAttr, ok := item["archive"].(*types.AttributeValueMemberS)
	if !ok {
		return "", 0, errors.New("s3: missing archive attribute in commit row")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("s3: parse commit version: %w", err)
	}

	return archiveAttr.Value, version, nil
}

// Commit publishes name as the next version with a conditional write. The
// archive itself must already be stored.
func (p *Pointer) Commit(ctx context.Context, name string) (uint64, error) {
	_, current, err := p.Latest(ctx)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return 0, err
	}

	next := current + 1

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item: map[string]types.AttributeValue{
			"landscape": &types.AttributeValueMemberS{Value: p.landscape},
			"version":   &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"archive":   &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}

		return 0, fmt.Errorf("s3: commit version %d: %w", next, err)
	}

	return next, nil
}
