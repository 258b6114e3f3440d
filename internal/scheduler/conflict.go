package scheduler

import (
	"fmt"
	"time"
)

// ConflictType names the resource role two bookings contend for.
type ConflictType string

const (
	// ConflictGroup is the same group booked twice in the same room.
	ConflictGroup    ConflictType = "group"
	ConflictRoom     ConflictType = "room"
	ConflictStudents ConflictType = "students"
	ConflictTeachers ConflictType = "teachers"
)

// Conflict describes one contended resource between two bookings.
//
// Batch conflicts carry both positions (Index < OtherIndex). Conflicts with a
// persisted booking set ExistingID and leave OtherIndex at -1.
type Conflict struct {
	Type       ConflictType
	ResourceID ID
	Window     TimeRange
	Message    string
	Index      int
	OtherIndex int
	ExistingID ID
}

// AgainstStore reports whether the conflict involves a persisted booking.
func (c Conflict) AgainstStore() bool {
	return c.OtherIndex < 0
}

const messageTimeLayout = "2006-01-02 15:04"

// TimeOverlaps reports whether two bookings' ranges strictly intersect.
func TimeOverlaps(a, b Booking) bool {
	return a.Range.Overlaps(b.Range)
}

// ResourceOverlaps reports whether two bookings contend for a resource:
// the same group in the same room, a shared student, or a shared teacher.
// A shared room without a shared group is not contention here.
func ResourceOverlaps(a, b Booking) bool {
	if sameGroupAndRoom(a, b) {
		return true
	}
	if _, ok := firstShared(a.Students, b.Students); ok {
		return true
	}
	_, ok := firstShared(a.Teachers, b.Teachers)
	return ok
}

func sameGroupAndRoom(a, b Booking) bool {
	ag, aok := a.Group.Get()
	bg, bok := b.Group.Get()
	return aok && bok && ag == bg && sameOption(a.Room, b.Room)
}

// Classify names the first matching condition in precedence order
// group+room, room, students, teachers and computes the overlap window.
// Index fields and Message are left for the caller. The boolean is false
// when no condition matches.
func Classify(a, b Booking) (Conflict, bool) {
	conflict := Conflict{Window: a.Range.Intersect(b.Range)}

	switch {
	case sameGroupAndRoom(a, b):
		conflict.Type = ConflictGroup
		conflict.ResourceID = a.Group.MustGet()
	case sharedRoom(a, b):
		conflict.Type = ConflictRoom
		conflict.ResourceID = a.Room.MustGet()
	default:
		if id, ok := firstShared(a.Students, b.Students); ok {
			conflict.Type = ConflictStudents
			conflict.ResourceID = id
			break
		}
		if id, ok := firstShared(a.Teachers, b.Teachers); ok {
			conflict.Type = ConflictTeachers
			conflict.ResourceID = id
			break
		}
		return Conflict{}, false
	}
	return conflict, true
}

func sharedRoom(a, b Booking) bool {
	ar, aok := a.Room.Get()
	br, bok := b.Room.Get()
	return aok && bok && ar == br
}

// CheckBatch compares every unordered pair in bookings.
func CheckBatch(bookings []Booking) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			a, b := bookings[i], bookings[j]
			if !TimeOverlaps(a, b) || !ResourceOverlaps(a, b) {
				continue
			}
			conflict, ok := Classify(a, b)
			if !ok {
				continue
			}
			conflict.Index = i
			conflict.OtherIndex = j
			conflict.Message = fmt.Sprintf("Session %d conflicts with session %d: %s",
				i+1, j+1, describe(conflict, a))
			conflicts = append(conflicts, conflict)
		}
	}
	return conflicts
}

func describe(c Conflict, a Booking) string {
	var subject string
	switch c.Type {
	case ConflictGroup:
		subject = fmt.Sprintf("group %s", c.ResourceID)
		if room, ok := a.Room.Get(); ok {
			subject = fmt.Sprintf("group %s in room %s", c.ResourceID, room)
		}
	case ConflictRoom:
		subject = fmt.Sprintf("room %s", c.ResourceID)
	case ConflictStudents:
		subject = fmt.Sprintf("student %s", c.ResourceID)
	case ConflictTeachers:
		subject = fmt.Sprintf("teacher %s", c.ResourceID)
	default:
		subject = string(c.ResourceID)
	}
	return fmt.Sprintf("%s is double-booked from %s to %s",
		subject, formatMessageTime(c.Window.Start), formatMessageTime(c.Window.End))
}

func formatMessageTime(t time.Time) string {
	return t.Format(messageTimeLayout)
}
