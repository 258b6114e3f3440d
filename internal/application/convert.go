package application

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/scheduler"
)

// normalizeResources trims ids, drops blanks, and sorts and de-duplicates
// the member lists.
func normalizeResources(r Resources) Resources {
	return Resources{
		GroupID:    normalizeOptionalString(r.GroupID),
		RoomID:     normalizeOptionalString(r.RoomID),
		StudentIDs: normalizeIDs(r.StudentIDs),
		TeacherIDs: normalizeIDs(r.TeacherIDs),
	}
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func optionalID(value *string) mo.Option[scheduler.ID] {
	if value == nil {
		return mo.None[scheduler.ID]()
	}
	return mo.Some(scheduler.ID(*value))
}

func idSet(ids []string) scheduler.IDSet {
	set := scheduler.NewIDSet()
	for _, id := range ids {
		set.Add(scheduler.ID(id))
	}
	return set
}

func stringIDs(ids []scheduler.ID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func newBooking(id string, start, end time.Time, r Resources) scheduler.Booking {
	return scheduler.Booking{
		ID:       scheduler.ID(id),
		Range:    scheduler.TimeRange{Start: start, End: end},
		Group:    optionalID(r.GroupID),
		Room:     optionalID(r.RoomID),
		Students: idSet(r.StudentIDs),
		Teachers: idSet(r.TeacherIDs),
	}
}

func sessionBooking(s Session) scheduler.Booking {
	return newBooking(s.ID, s.Start, s.End, s.Resources)
}

func fromPersistenceSession(s persistence.Session) Session {
	return Session{
		ID:       s.ID,
		SeriesID: s.SeriesID,
		Sequence: s.Sequence,
		Title:    s.Title,
		Start:    s.StartsAt,
		End:      s.EndsAt,
		Resources: Resources{
			GroupID:    s.GroupID,
			RoomID:     s.RoomID,
			StudentIDs: s.StudentIDs,
			TeacherIDs: s.TeacherIDs,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toPersistenceSession(s Session) persistence.Session {
	return persistence.Session{
		ID:         s.ID,
		SeriesID:   s.SeriesID,
		Sequence:   s.Sequence,
		Title:      s.Title,
		StartsAt:   s.Start,
		EndsAt:     s.End,
		GroupID:    s.Resources.GroupID,
		RoomID:     s.Resources.RoomID,
		StudentIDs: s.Resources.StudentIDs,
		TeacherIDs: s.Resources.TeacherIDs,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func toPersistenceSessions(sessions []Session) []persistence.Session {
	out := make([]persistence.Session, len(sessions))
	for i, s := range sessions {
		out[i] = toPersistenceSession(s)
	}
	return out
}

func toPersistenceSeries(s Series, weekday, duration string) persistence.Series {
	return persistence.Series{
		ID:             s.ID,
		Title:          s.Title,
		Weekday:        weekday,
		RangeStart:     s.Rule.RangeStart,
		RangeEnd:       s.Rule.RangeEnd,
		FrequencyWeeks: s.Rule.FrequencyWeeks,
		ClockTime:      s.Rule.ClockTime,
		DurationHours:  duration,
		GroupID:        s.Resources.GroupID,
		RoomID:         s.Resources.RoomID,
		StudentIDs:     s.Resources.StudentIDs,
		TeacherIDs:     s.Resources.TeacherIDs,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// fromPersistenceSeries rebuilds the stored calendar dates in loc.
func fromPersistenceSeries(s persistence.Series, loc *time.Location) Series {
	return Series{
		ID:    s.ID,
		Title: s.Title,
		Rule: RuleInput{
			Weekday:        s.Weekday,
			RangeStart:     civilDate(s.RangeStart, loc),
			RangeEnd:       civilDate(s.RangeEnd, loc),
			FrequencyWeeks: s.FrequencyWeeks,
			ClockTime:      s.ClockTime,
			DurationHours:  s.DurationHours,
		},
		Resources: Resources{
			GroupID:    s.GroupID,
			RoomID:     s.RoomID,
			StudentIDs: s.StudentIDs,
			TeacherIDs: s.TeacherIDs,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// sessionLookup answers detector lookups from the session repository.
type sessionLookup struct {
	sessions persistence.SessionRepository
}

func (l sessionLookup) FindConflictCandidates(ctx context.Context, query scheduler.LookupQuery) ([]scheduler.Booking, error) {
	overlap := persistence.OverlapQuery{
		Start:      query.Range.Start,
		End:        query.Range.End,
		StudentIDs: stringIDs(query.Hints.Students),
		TeacherIDs: stringIDs(query.Hints.Teachers),
		ExcludeIDs: stringIDs(query.ExcludeIDs.Sorted()),
	}
	if group, ok := query.Hints.Group.Get(); ok {
		g := string(group)
		overlap.GroupID = &g
		if room, ok := query.Hints.Room.Get(); ok {
			r := string(room)
			overlap.RoomID = &r
		}
	}

	found, err := l.sessions.FindOverlapping(ctx, overlap)
	if err != nil {
		return nil, err
	}
	bookings := make([]scheduler.Booking, len(found))
	for i, s := range found {
		bookings[i] = sessionBooking(fromPersistenceSession(s))
	}
	return bookings, nil
}
