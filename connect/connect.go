// Package connect drives the loop that joins two minima through chains of
// transition states.
//
// The driver owns the policy side of a connection run: it asks the planning
// graph for the most promising pair, hands that pair to the injected local
// search, and absorbs whatever the search found back into the session. The
// expensive search stays outside; the driver only decides where to aim it
// next and when to give up.
package connect

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hupe1980/landgo"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distgraph"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/resource"
)

// Point is a stationary point produced by a local search. A zero ID marks a
// new discovery; a non-zero ID declares the point identical to an already
// registered minimum, which is the search side's duplicate recognition.
type Point struct {
	ID     core.MinimumID
	Energy float64
	Coords []float64
}

// Segment is one chain discovered by a local search attempt. Saddles[i] is
// the transition state between Minima[i] and Minima[i+1], so a valid
// segment has len(Minima) == len(Saddles)+1. A partial search that found
// minima but no saddle between them submits single-minimum segments.
type Segment struct {
	Minima  []Point
	Saddles []Point
}

// Duplicate declares two registered minima to be the same structure. The
// drop side is folded into keep.
type Duplicate struct {
	Keep core.MinimumID
	Drop core.MinimumID
}

// Outcome reports what one local search attempt produced. An empty outcome
// is a failed attempt.
type Outcome struct {
	Segments   []Segment
	Duplicates []Duplicate
}

// Empty reports whether the attempt produced nothing usable.
func (o Outcome) Empty() bool {
	return len(o.Segments) == 0 && len(o.Duplicates) == 0
}

// Attempt identifies one local search invocation.
type Attempt struct {
	ID   uuid.UUID
	From model.Minimum
	To   model.Minimum
}

// LocalConnect runs the expensive double-ended path search between the
// attempt's endpoints.
type LocalConnect interface {
	Connect(ctx context.Context, attempt Attempt) (Outcome, error)
}

// LocalConnectFunc adapts a function to the LocalConnect interface.
type LocalConnectFunc func(ctx context.Context, attempt Attempt) (Outcome, error)

// Connect implements LocalConnect.
func (fn LocalConnectFunc) Connect(ctx context.Context, attempt Attempt) (Outcome, error) {
	return fn(ctx, attempt)
}

// Options configures a driver.
type Options struct {
	// MaxAttempts bounds local search invocations. Zero means unlimited.
	MaxAttempts int

	// CheckInterval runs a consistency check after every n absorbed
	// outcomes. Zero disables periodic checks.
	CheckInterval int

	// Controller gates search slots and paces attempts. Nil disables
	// resource control.
	Controller *resource.Controller

	// Logger traces driver decisions.
	Logger *landgo.Logger
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	MaxAttempts:   100,
	CheckInterval: 10,
}

// Result summarizes a connection run.
type Result struct {
	// Connected is true when start and end ended up in the same
	// connectivity component.
	Connected bool

	// Exhausted is true when no viable pair remains to attempt.
	Exhausted bool

	// Attempts counts local search invocations.
	Attempts int

	// NewMinima counts registered discoveries.
	NewMinima int

	// NewTransitionStates counts registered saddles.
	NewTransitionStates int

	// Merged counts folded duplicates.
	Merged int
}

// Driver runs connection loops against one session.
type Driver struct {
	s     *landgo.Session
	start model.Minimum
	end   model.Minimum
	lc    LocalConnect
	opts  Options
}

// New creates a driver connecting start to end through the given local
// search capability.
func New(s *landgo.Session, start, end model.Minimum, lc LocalConnect, optFns ...func(o *Options)) *Driver {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = landgo.NoopLogger()
	}

	return &Driver{
		s:     s,
		start: start,
		end:   end,
		lc:    lc,
		opts:  opts,
	}
}

// Run drives attempts until the endpoints connect, nothing viable remains,
// the attempt budget runs out, or ctx is cancelled. The partial result is
// returned alongside any error.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var res Result

	if err := d.s.Initialize(ctx, d.start, d.end); err != nil {
		return res, err
	}

	broadened := false
	absorbed := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if d.s.Connected(d.start.ID, d.end.ID) {
			res.Connected = true
			d.opts.Logger.InfoContext(ctx, "endpoints connected",
				"start", uint32(d.start.ID),
				"end", uint32(d.end.ID),
				"attempts", res.Attempts,
			)

			return res, nil
		}

		if d.opts.MaxAttempts > 0 && res.Attempts >= d.opts.MaxAttempts {
			return res, nil
		}

		path, ok := d.s.ShortestPath(ctx, d.start.ID, d.end.ID)
		if !ok {
			// One admission broadening is allowed before giving up. The
			// relevance filter may pull in cached minima that bridge the
			// gap without any new distance computation.
			if broadened {
				res.Exhausted = true
				return res, nil
			}

			broadened = true
			d.opts.Logger.InfoContext(ctx, "no path, broadening admission",
				"start", uint32(d.start.ID),
				"end", uint32(d.end.ID),
			)

			err := d.s.Initialize(ctx, d.start, d.end, func(o *distgraph.InitOptions) {
				o.AdmitRelevant = true
			})
			if err != nil {
				return res, err
			}

			continue
		}

		pair, weight, ok := path.MaxEdge()
		if !ok {
			// Single node path: start == end.
			res.Connected = true
			return res, nil
		}

		if weight >= distgraph.InfiniteWeight {
			res.Exhausted = true
			d.opts.Logger.InfoContext(ctx, "only exhausted pairs remain",
				"start", uint32(d.start.ID),
				"end", uint32(d.end.ID),
				"attempts", res.Attempts,
			)

			return res, nil
		}

		if weight == 0 {
			// A zero weight path between unconnected endpoints contradicts
			// the connectivity graph. Repair and re-plan.
			if _, err := d.s.CheckConsistency(ctx); err != nil {
				return res, err
			}

			continue
		}

		outcome, err := d.attempt(ctx, pair)
		if err != nil {
			return res, err
		}

		res.Attempts++

		if outcome.Empty() {
			d.s.MarkUnproductive(ctx, pair.A, pair.B)
			continue
		}

		if err := d.absorb(ctx, outcome, &res); err != nil {
			return res, err
		}

		// The attempted pair stays off the menu unless the search actually
		// joined it.
		if !d.s.Connected(pair.A, pair.B) {
			d.s.MarkUnproductive(ctx, pair.A, pair.B)
		}

		absorbed++
		if d.opts.CheckInterval > 0 && absorbed%d.opts.CheckInterval == 0 {
			if _, err := d.s.CheckConsistency(ctx); err != nil {
				return res, err
			}
		}
	}
}

// attempt runs one gated local search. Search failures are absorbed into an
// empty outcome; only cancellation aborts the run.
func (d *Driver) attempt(ctx context.Context, pair core.Pair) (Outcome, error) {
	from, err := d.s.Minimum(ctx, pair.A)
	if err != nil {
		return Outcome{}, err
	}

	to, err := d.s.Minimum(ctx, pair.B)
	if err != nil {
		return Outcome{}, err
	}

	if err := d.opts.Controller.AcquireWorker(ctx); err != nil {
		return Outcome{}, err
	}
	defer d.opts.Controller.ReleaseWorker()

	if err := d.opts.Controller.AwaitAttempt(ctx); err != nil {
		return Outcome{}, err
	}

	attempt := Attempt{ID: uuid.New(), From: from, To: to}

	d.opts.Logger.DebugContext(ctx, "local search started",
		"attempt", attempt.ID.String(),
		"min1", uint32(pair.A),
		"min2", uint32(pair.B),
	)

	outcome, err := d.lc.Connect(ctx, attempt)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, err
		}

		d.opts.Logger.WarnContext(ctx, "local search failed",
			"attempt", attempt.ID.String(),
			"min1", uint32(pair.A),
			"min2", uint32(pair.B),
			"error", err,
		)

		return Outcome{}, nil
	}

	return outcome, nil
}

// absorb registers everything the search found: minima first, then the
// saddles between them, then declared duplicates.
func (d *Driver) absorb(ctx context.Context, outcome Outcome, res *Result) error {
	for _, seg := range outcome.Segments {
		ids := make([]core.MinimumID, len(seg.Minima))

		for i, p := range seg.Minima {
			id, grew, err := d.register(ctx, p)
			if err != nil {
				return err
			}

			if grew {
				res.NewMinima++
			}

			ids[i] = id
		}

		for i, saddle := range seg.Saddles {
			if _, err := d.s.AddTransitionState(ctx, saddle.Energy, saddle.Coords, ids[i], ids[i+1]); err != nil {
				return err
			}

			res.NewTransitionStates++
		}
	}

	for _, dup := range outcome.Duplicates {
		if err := d.s.Merge(ctx, dup.Keep, dup.Drop); err != nil {
			return err
		}

		res.Merged++
	}

	return nil
}

// register resolves a point to an admitted minimum, creating the record for
// new discoveries. The second return reports whether a record was created.
func (d *Driver) register(ctx context.Context, p Point) (core.MinimumID, bool, error) {
	if p.ID != 0 {
		m, err := d.s.Minimum(ctx, p.ID)
		if err != nil {
			return 0, false, err
		}

		return p.ID, false, d.s.Admit(ctx, m)
	}

	m, err := d.s.AddMinimum(ctx, p.Energy, p.Coords)
	if err != nil {
		return 0, false, err
	}

	return m.ID, true, d.s.Admit(ctx, m)
}
