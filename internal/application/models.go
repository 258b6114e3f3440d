package application

import (
	"time"

	"github.com/samber/mo"
)

// RuleInput captures caller provided recurrence fields. RangeStart and
// RangeEnd carry the caller's time zone; DurationHours is decimal text.
type RuleInput struct {
	Weekday        string
	RangeStart     time.Time
	RangeEnd       time.Time
	FrequencyWeeks int
	ClockTime      string
	DurationHours  string
}

// RuleCheck is the validation outcome of a rule.
type RuleCheck struct {
	Valid          bool
	Message        string
	EstimatedCount mo.Option[int]
}

// Occurrence is one generated instance of a rule.
type Occurrence struct {
	Sequence int
	Start    time.Time
	End      time.Time
}

// RulePreview holds at most the requested number of occurrences plus the
// total the rule would generate.
type RulePreview struct {
	Check       RuleCheck
	Occurrences []Occurrence
	Total       int
}

// ICSExport names the event written by ExportRuleICS.
type ICSExport struct {
	UID      string
	Summary  string
	Location string
}

// Resources lists what a session occupies. Every field is optional.
type Resources struct {
	GroupID    *string
	RoomID     *string
	StudentIDs []string
	TeacherIDs []string
}

// Session is a persisted booking.
type Session struct {
	ID        string
	SeriesID  *string
	Sequence  int
	Title     string
	Start     time.Time
	End       time.Time
	Resources Resources
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Series is a rule whose occurrences were persisted as sessions.
type Series struct {
	ID        string
	Title     string
	Rule      RuleInput
	Resources Resources
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSeriesParams wraps the data required to create a series.
type CreateSeriesParams struct {
	Title        string
	Rule         RuleInput
	Resources    Resources
	AllowOverlap bool
}

// UpdateSeriesParams wraps the data required to regenerate a series.
type UpdateSeriesParams struct {
	SeriesID     string
	Title        string
	Rule         RuleInput
	Resources    Resources
	AllowOverlap bool
}

// SeriesResult is returned by series writes. Warnings list the conflicts
// that AllowOverlap let through.
type SeriesResult struct {
	Series   Series
	Sessions []Session
	Warnings []string
}

// SessionInput captures caller provided session fields.
type SessionInput struct {
	Title     string
	Start     time.Time
	End       time.Time
	Resources Resources
}

// CreateSessionsParams wraps a batch of ad-hoc sessions.
type CreateSessionsParams struct {
	Sessions     []SessionInput
	AllowOverlap bool
}

// SessionsResult is returned by CreateSessions.
type SessionsResult struct {
	Sessions []Session
	Warnings []string
}

// UpdateSessionParams wraps the data required to update one session.
type UpdateSessionParams struct {
	SessionID    string
	Input        SessionInput
	AllowOverlap bool
}

// SessionResult is returned by UpdateSession.
type SessionResult struct {
	Session  Session
	Warnings []string
}

// BulkUpdateParams wraps independent session updates.
type BulkUpdateParams struct {
	Updates []UpdateSessionParams
}

// BulkUpdateItem reports the outcome of one update in a bulk request.
type BulkUpdateItem struct {
	SessionID string
	Session   *Session
	Warnings  []string
	Err       error
}

// BulkUpdateResult aggregates a bulk update. Items keep request order.
type BulkUpdateResult struct {
	Successful int
	Failed     int
	Items      []BulkUpdateItem
}

// ListSessionsParams narrows session listings. Empty fields are ignored.
type ListSessionsParams struct {
	From      *time.Time
	To        *time.Time
	SeriesID  string
	GroupID   string
	RoomID    string
	StudentID string
	TeacherID string
}

// CheckConflictsParams describes a dry-run conflict check.
type CheckConflictsParams struct {
	Sessions     []SessionInput
	ExcludeIDs   []string
	AllowOverlap bool
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	Location string
	Capacity int
}

// Room represents a bookable classroom.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Input RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	RoomID string
	Input  RoomInput
}
