package persistence

import "time"

// Room is a bookable classroom.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Series stores the weekly rule a group of sessions was generated from.
// DurationHours holds the decimal text as submitted, e.g. "1.5". RangeStart
// and RangeEnd are calendar dates; drivers may return them at midnight UTC.
type Series struct {
	ID             string
	Title          string
	Weekday        string
	RangeStart     time.Time
	RangeEnd       time.Time
	FrequencyWeeks int
	ClockTime      string
	DurationHours  string
	GroupID        *string
	RoomID         *string
	StudentIDs     []string
	TeacherIDs     []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session is one persisted booking. SeriesID and Sequence are set when the
// session was generated from a series.
type Session struct {
	ID         string
	SeriesID   *string
	Sequence   int
	Title      string
	StartsAt   time.Time
	EndsAt     time.Time
	GroupID    *string
	RoomID     *string
	StudentIDs []string
	TeacherIDs []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
