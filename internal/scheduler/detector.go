package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// LookupQuery asks a store for persisted bookings that intersect Range and
// could share a resource named in Hints. Bookings whose ID is in ExcludeIDs
// must not be returned.
type LookupQuery struct {
	Range      TimeRange
	Hints      ResourceHints
	ExcludeIDs IDSet
}

// BookingLookup reads persisted bookings. Implementations may over-select;
// the detector re-checks every candidate.
type BookingLookup interface {
	FindConflictCandidates(ctx context.Context, query LookupQuery) ([]Booking, error)
}

// BookingLookupFunc adapts a function to BookingLookup.
type BookingLookupFunc func(ctx context.Context, query LookupQuery) ([]Booking, error)

func (f BookingLookupFunc) FindConflictCandidates(ctx context.Context, query LookupQuery) ([]Booking, error) {
	return f(ctx, query)
}

// Result is the outcome of Detector.Validate.
type Result struct {
	HasConflict bool
	Conflicts   []Conflict
	Warnings    []string
}

// Detector runs batch and store-backed conflict checks.
type Detector struct {
	lookup      BookingLookup
	concurrency int
}

// Option configures a Detector.
type Option func(*Detector)

// WithConcurrency bounds the number of store lookups in flight during
// Validate. Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDetector returns a Detector backed by lookup. A nil lookup limits
// Validate to batch checks.
func NewDetector(lookup BookingLookup, opts ...Option) *Detector {
	d := &Detector{lookup: lookup, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckAgainstStore finds persisted bookings that conflict with booking.
// index is the booking's position in its batch and is copied onto each
// conflict. Errors from the lookup are returned unchanged.
func (d *Detector) CheckAgainstStore(ctx context.Context, booking Booking, index int, excludeIDs IDSet) ([]Conflict, error) {
	if d == nil || d.lookup == nil {
		return nil, nil
	}

	candidates, err := d.lookup.FindConflictCandidates(ctx, LookupQuery{
		Range:      booking.Range,
		Hints:      booking.Hints(),
		ExcludeIDs: excludeIDs,
	})
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, existing := range candidates {
		if excludeIDs.Contains(existing.ID) {
			continue
		}
		if !TimeOverlaps(booking, existing) || !ResourceOverlaps(booking, existing) {
			continue
		}
		conflict, ok := Classify(booking, existing)
		if !ok {
			continue
		}
		conflict.Index = index
		conflict.OtherIndex = -1
		conflict.ExistingID = existing.ID
		conflict.Message = fmt.Sprintf("Session %d conflicts with existing session %s: %s",
			index+1, existing.ID, describe(conflict, booking))
		conflicts = append(conflicts, conflict)
	}
	return conflicts, nil
}

// Validate checks bookings against each other and against the store. With
// allowOverlap every conflict becomes a warning and HasConflict stays false.
func (d *Detector) Validate(ctx context.Context, bookings []Booking, allowOverlap bool, excludeIDs IDSet) (Result, error) {
	conflicts := CheckBatch(bookings)

	perBooking := make([][]Conflict, len(bookings))
	if d != nil && d.lookup != nil && len(bookings) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency)
		for i := range bookings {
			g.Go(func() error {
				found, err := d.CheckAgainstStore(gctx, bookings[i], i, excludeIDs)
				if err != nil {
					return err
				}
				perBooking[i] = found
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	}
	for _, found := range perBooking {
		conflicts = append(conflicts, found...)
	}

	if len(conflicts) == 0 {
		return Result{}, nil
	}
	if allowOverlap {
		warnings := make([]string, len(conflicts))
		for i, c := range conflicts {
			warnings[i] = c.Message
		}
		return Result{Warnings: warnings}, nil
	}
	return Result{HasConflict: true, Conflicts: conflicts}, nil
}
