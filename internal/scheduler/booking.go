package scheduler

import (
	"sort"
	"time"

	"github.com/samber/mo"
)

// ID identifies a booking or a resource (group, room, student, teacher).
type ID string

// IDSet is an unordered set of identifiers.
type IDSet map[ID]struct{}

// NewIDSet builds a set, skipping empty identifiers.
func NewIDSet(ids ...ID) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts id unless it is empty.
func (s IDSet) Add(id ID) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Contains is safe on a nil set.
func (s IDSet) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// firstShared returns the smallest identifier present in both sets.
func firstShared(a, b IDSet) (ID, bool) {
	if len(b) < len(a) {
		a, b = b, a
	}
	var (
		best  ID
		found bool
	)
	for id := range a {
		if !b.Contains(id) {
			continue
		}
		if !found || id < best {
			best, found = id, true
		}
	}
	return best, found
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports strict intersection; ranges that only touch do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Intersect returns [max(starts), min(ends)].
func (r TimeRange) Intersect(other TimeRange) TimeRange {
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

// Booking is a timed reservation of a sparse set of resources.
type Booking struct {
	// ID is empty for proposed bookings that have not been persisted.
	ID       ID
	Range    TimeRange
	Group    mo.Option[ID]
	Room     mo.Option[ID]
	Students IDSet
	Teachers IDSet
}

// Hints extracts the resource filter a store needs to pre-select candidates.
func (b Booking) Hints() ResourceHints {
	return ResourceHints{
		Group:    b.Group,
		Room:     b.Room,
		Students: b.Students.Sorted(),
		Teachers: b.Teachers.Sorted(),
	}
}

// ResourceHints narrows a store lookup to bookings that could share a
// resource with the one being checked.
type ResourceHints struct {
	Group    mo.Option[ID]
	Room     mo.Option[ID]
	Students []ID
	Teachers []ID
}

func sameOption(a, b mo.Option[ID]) bool {
	av, aok := a.Get()
	bv, bok := b.Get()
	return aok == bok && av == bv
}
