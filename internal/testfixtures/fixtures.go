package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/persistence"
)

var (
	roomCounter    uint64
	sessionCounter uint64
)

// referenceTime is a Monday.
var referenceTime = time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic classroom record.
type RoomFixture struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Main Building",
		Capacity:  int(4 + idx%4),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:        f.ID,
		Name:      f.Name,
		Location:  f.Location,
		Capacity:  f.Capacity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Location:  f.Location,
		Capacity:  f.Capacity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:     f.Name,
		Location: f.Location,
		Capacity: f.Capacity,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic ad-hoc session. Each new fixture
// starts one day after the previous one so fixtures never overlap unless a
// test moves them.
type SessionFixture struct {
	ID         string
	Title      string
	Start      time.Time
	End        time.Time
	GroupID    *string
	RoomID     *string
	StudentIDs []string
	TeacherIDs []string
	CreatedAt  time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic one hour session.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		Title:     fmt.Sprintf("Session %03d", idx),
		Start:     start,
		End:       start.Add(time.Hour),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionWindow sets the start and end instants.
func WithSessionWindow(start, end time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.Start = start
		f.End = end
	}
}

// WithSessionGroup places the session in a group and, when roomID is not
// empty, a room.
func WithSessionGroup(groupID, roomID string) SessionOption {
	return func(f *SessionFixture) {
		f.GroupID = &groupID
		f.RoomID = nil
		if roomID != "" {
			f.RoomID = &roomID
		}
	}
}

// WithSessionRoom assigns a room.
func WithSessionRoom(roomID string) SessionOption {
	return func(f *SessionFixture) {
		f.RoomID = &roomID
	}
}

// WithSessionStudents sets the attending students.
func WithSessionStudents(ids ...string) SessionOption {
	return func(f *SessionFixture) {
		f.StudentIDs = slices.Clone(ids)
	}
}

// WithSessionTeachers sets the teaching staff.
func WithSessionTeachers(ids ...string) SessionOption {
	return func(f *SessionFixture) {
		f.TeacherIDs = slices.Clone(ids)
	}
}

func (f SessionFixture) resources() application.Resources {
	return application.Resources{
		GroupID:    copyStringPtr(f.GroupID),
		RoomID:     copyStringPtr(f.RoomID),
		StudentIDs: slices.Clone(f.StudentIDs),
		TeacherIDs: slices.Clone(f.TeacherIDs),
	}
}

// Input returns the fixture as an application.SessionInput.
func (f SessionFixture) Input() application.SessionInput {
	return application.SessionInput{
		Title:     f.Title,
		Start:     f.Start,
		End:       f.End,
		Resources: f.resources(),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:         f.ID,
		Title:      f.Title,
		StartsAt:   f.Start,
		EndsAt:     f.End,
		GroupID:    copyStringPtr(f.GroupID),
		RoomID:     copyStringPtr(f.RoomID),
		StudentIDs: slices.Clone(f.StudentIDs),
		TeacherIDs: slices.Clone(f.TeacherIDs),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// ------------------------------ Rule fixtures -----------------------------

// RuleOption configures a rule fixture.
type RuleOption func(*application.RuleInput)

// NewRuleFixture returns a weekly Monday 10:00 rule lasting 1.5 hours that
// yields four occurrences starting on ReferenceTime's date.
func NewRuleFixture(opts ...RuleOption) application.RuleInput {
	start := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 0, 0, 0, 0, time.UTC)
	rule := application.RuleInput{
		Weekday:        "monday",
		RangeStart:     start,
		RangeEnd:       start.AddDate(0, 0, 21),
		FrequencyWeeks: 1,
		ClockTime:      "10:00",
		DurationHours:  "1.5",
	}
	for _, opt := range opts {
		opt(&rule)
	}
	return rule
}

// WithRuleWeekday overrides the weekday name.
func WithRuleWeekday(day string) RuleOption {
	return func(r *application.RuleInput) {
		r.Weekday = day
	}
}

// WithRuleRange overrides the date range.
func WithRuleRange(start, end time.Time) RuleOption {
	return func(r *application.RuleInput) {
		r.RangeStart = start
		r.RangeEnd = end
	}
}

// WithRuleFrequency overrides the week interval.
func WithRuleFrequency(weeks int) RuleOption {
	return func(r *application.RuleInput) {
		r.FrequencyWeeks = weeks
	}
}

// WithRuleClock overrides the start time and duration.
func WithRuleClock(clock, durationHours string) RuleOption {
	return func(r *application.RuleInput) {
		r.ClockTime = clock
		r.DurationHours = durationHours
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
