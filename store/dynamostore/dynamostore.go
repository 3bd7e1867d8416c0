// Package dynamostore mirrors distance persistence into DynamoDB so several
// machines exploring the same landscape can share computed distances.
//
// Minimum and transition state records stay in the wrapped local store; only
// the distance surface is overridden. Writes go to DynamoDB first and to the
// local store second, reads come from DynamoDB alone. Distance rows are
// idempotent facts, so a partial failure can at worst leave extra valid rows
// behind.
//
// Table schema:
//   - Partition key: landscape (string)
//   - Sort key: pair (number), both minimum ids packed into one uint64
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name landgo-distances \
//	  --attribute-definitions AttributeName=landscape,AttributeType=S AttributeName=pair,AttributeType=N \
//	  --key-schema AttributeName=landscape,KeyType=HASH AttributeName=pair,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

// batchMax is DynamoDB's BatchWriteItem item limit.
const batchMax = 25

// Attribute names.
const (
	attrLandscape = "landscape"
	attrPair      = "pair"
	attrDist      = "dist"
)

// ErrUnprocessedItems is returned when DynamoDB keeps rejecting batch items
// after all retries.
var ErrUnprocessedItems = errors.New("dynamostore: unprocessed items remain after retries")

// Client is the DynamoDB surface the store depends on. *dynamodb.Client
// satisfies it.
type Client interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Options configures the store.
type Options struct {
	// Landscape is the partition key value, isolating this landscape's
	// distances from others sharing the table.
	Landscape string

	// MaxParallel bounds concurrent BatchWriteItem calls.
	MaxParallel int

	// MaxAttempts bounds retries of unprocessed batch items.
	MaxAttempts int

	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	Landscape:   "default",
	MaxParallel: 4,
	MaxAttempts: 5,
	RetryBase:   50 * time.Millisecond,
}

// Store is a DynamoDB-mirrored planner store.
type Store struct {
	inner  store.Store
	client Client
	table  string
	opts   Options
}

// Compile-time check that the persistence contract is satisfied.
var _ store.Store = (*Store)(nil)

// New wraps inner so distance writes are mirrored into the DynamoDB table
// and distance reads come from it.
func New(inner store.Store, client Client, table string, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		inner:  inner,
		client: client,
		table:  table,
		opts:   opts,
	}
}

// Begin opens a transactional scope. Distances staged through it reach
// DynamoDB on Commit, before the local commit.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	inner, err := s.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &dynamoTx{st: s, ctx: ctx, inner: inner}, nil
}

// BulkWriteDistances persists a batch remotely, then in the local mirror.
func (s *Store) BulkWriteDistances(ctx context.Context, entries []model.DistanceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := s.pushDistances(ctx, entries); err != nil {
		return err
	}

	return s.inner.BulkWriteDistances(ctx, entries)
}

// Distances iterates over the landscape's distance rows in DynamoDB.
func (s *Store) Distances(ctx context.Context) iter.Seq2[model.DistanceEntry, error] {
	return func(yield func(model.DistanceEntry, error) bool) {
		paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("landscape = :l"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":l": &types.AttributeValueMemberS{Value: s.opts.Landscape},
			},
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(model.DistanceEntry{}, fmt.Errorf("dynamostore: query distances: %w", err))

				return
			}

			for _, item := range page.Items {
				e, err := decodeDistance(item)
				if err != nil {
					yield(model.DistanceEntry{}, err)

					return
				}

				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

// PutMinimum inserts or replaces a minimum record.
func (s *Store) PutMinimum(ctx context.Context, m model.Minimum) error {
	return s.inner.PutMinimum(ctx, m)
}

// Minimum fetches a minimum by id.
func (s *Store) Minimum(ctx context.Context, id core.MinimumID) (model.Minimum, error) {
	return s.inner.Minimum(ctx, id)
}

// Minima iterates over all minimum records.
func (s *Store) Minima(ctx context.Context) iter.Seq2[model.Minimum, error] {
	return s.inner.Minima(ctx)
}

// DeleteMinimum removes the local record and every remote distance row
// referencing the id.
func (s *Store) DeleteMinimum(ctx context.Context, id core.MinimumID) error {
	if err := s.inner.DeleteMinimum(ctx, id); err != nil {
		return err
	}

	var stale []types.WriteRequest

	for e, err := range s.Distances(ctx) {
		if err != nil {
			return err
		}

		if e.Pair.Contains(id) {
			stale = append(stale, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: s.distanceKey(e.Pair)},
			})
		}
	}

	return s.writeBatches(ctx, stale)
}

// PutTransitionState inserts or replaces a transition state record.
func (s *Store) PutTransitionState(ctx context.Context, ts model.TransitionState) error {
	return s.inner.PutTransitionState(ctx, ts)
}

// TransitionState fetches a transition state by id.
func (s *Store) TransitionState(ctx context.Context, id core.TransitionStateID) (model.TransitionState, error) {
	return s.inner.TransitionState(ctx, id)
}

// TransitionStates iterates over all transition state records.
func (s *Store) TransitionStates(ctx context.Context) iter.Seq2[model.TransitionState, error] {
	return s.inner.TransitionStates(ctx)
}

// NextMinimumID allocates a fresh minimum identity.
func (s *Store) NextMinimumID(ctx context.Context) (core.MinimumID, error) {
	return s.inner.NextMinimumID(ctx)
}

// NextTransitionStateID allocates a fresh transition state identity.
func (s *Store) NextTransitionStateID(ctx context.Context) (core.TransitionStateID, error) {
	return s.inner.NextTransitionStateID(ctx)
}

// Close closes the wrapped local store.
func (s *Store) Close() error {
	return s.inner.Close()
}

// pushDistances writes entries to DynamoDB.
func (s *Store) pushDistances(ctx context.Context, entries []model.DistanceEntry) error {
	requests := make([]types.WriteRequest, 0, len(entries))

	for _, e := range entries {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: s.distanceItem(e)},
		})
	}

	return s.writeBatches(ctx, requests)
}

// writeBatches splits requests into BatchWriteItem-sized chunks and writes
// them in parallel, retrying unprocessed items with exponential backoff.
func (s *Store) writeBatches(ctx context.Context, requests []types.WriteRequest) error {
	if len(requests) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxParallel)

	for start := 0; start < len(requests); start += batchMax {
		chunk := requests[start:min(start+batchMax, len(requests))]

		g.Go(func() error {
			return s.writeChunk(ctx, chunk)
		})
	}

	return g.Wait()
}

func (s *Store) writeChunk(ctx context.Context, chunk []types.WriteRequest) error {
	delay := s.opts.RetryBase

	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}

			delay *= 2
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.table: chunk,
			},
		})
		if err != nil {
			return fmt.Errorf("dynamostore: batch write: %w", err)
		}

		chunk = out.UnprocessedItems[s.table]
		if len(chunk) == 0 {
			return nil
		}
	}

	return ErrUnprocessedItems
}

func (s *Store) distanceItem(e model.DistanceEntry) map[string]types.AttributeValue {
	item := s.distanceKey(e.Pair)
	item[attrDist] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(e.Dist, 'g', -1, 64)}

	return item
}

func (s *Store) distanceKey(p core.Pair) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrLandscape: &types.AttributeValueMemberS{Value: s.opts.Landscape},
		attrPair:      &types.AttributeValueMemberN{Value: strconv.FormatUint(p.Key(), 10)},
	}
}

func decodeDistance(item map[string]types.AttributeValue) (model.DistanceEntry, error) {
	pairAttr, ok := item[attrPair].(*types.AttributeValueMemberN)
	if !ok {
		return model.DistanceEntry{}, errors.New("dynamostore: missing pair attribute")
	}

	distAttr, ok := item[attrDist].(*types.AttributeValueMemberN)
	if !ok {
		return model.DistanceEntry{}, errors.New("dynamostore: missing dist attribute")
	}

	key, err := strconv.ParseUint(pairAttr.Value, 10, 64)
	if err != nil {
		return model.DistanceEntry{}, fmt.Errorf("dynamostore: parse pair: %w", err)
	}

	dist, err := strconv.ParseFloat(distAttr.Value, 64)
	if err != nil {
		return model.DistanceEntry{}, fmt.Errorf("dynamostore: parse dist: %w", err)
	}

	return model.DistanceEntry{Pair: core.PairFromKey(key), Dist: dist}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// dynamoTx stages distance writes for a local transaction and pushes them to
// DynamoDB at commit time, before the local commit. A failure between the
// two leaves extra valid rows remotely and nothing locally.
type dynamoTx struct {
	st     *Store
	ctx    context.Context
	inner  store.Tx
	staged []model.DistanceEntry
	done   bool
}

// Compile-time check that the transactional contract is satisfied.
var _ store.Tx = (*dynamoTx)(nil)

// WriteDistances stages distance entries inside the transaction.
func (t *dynamoTx) WriteDistances(entries []model.DistanceEntry) error {
	if t.done {
		return store.ErrTxDone
	}

	if err := t.inner.WriteDistances(entries); err != nil {
		return err
	}

	t.staged = append(t.staged, entries...)

	return nil
}

// Commit pushes staged distances remotely, then commits locally.
func (t *dynamoTx) Commit() error {
	if t.done {
		return store.ErrTxDone
	}

	t.done = true

	if len(t.staged) > 0 {
		if err := t.st.pushDistances(t.ctx, t.staged); err != nil {
			_ = t.inner.Rollback()

			return err
		}
	}

	return t.inner.Commit()
}

// Rollback discards all staged writes. After Commit it is a no-op.
func (t *dynamoTx) Rollback() error {
	if t.done {
		return nil
	}

	t.done = true

	return t.inner.Rollback()
}
