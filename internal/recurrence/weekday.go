package recurrence

import (
	"strings"
	"time"
)

// Weekday is the closed set of days a weekly rule can target.
type Weekday int

const (
	// WeekdayUnspecified is the zero value and never valid.
	WeekdayUnspecified Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ParseWeekday maps an English day name (any case, surrounding spaces ignored)
// to a Weekday. Unknown names yield WeekdayUnspecified.
func ParseWeekday(name string) Weekday {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "monday":
		return Monday
	case "tuesday":
		return Tuesday
	case "wednesday":
		return Wednesday
	case "thursday":
		return Thursday
	case "friday":
		return Friday
	case "saturday":
		return Saturday
	case "sunday":
		return Sunday
	default:
		return WeekdayUnspecified
	}
}

// WeekdayFromTime converts a time.Weekday.
func WeekdayFromTime(day time.Weekday) Weekday {
	switch day {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	case time.Sunday:
		return Sunday
	default:
		return WeekdayUnspecified
	}
}

// Valid reports whether w is one of the seven days.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// TimeWeekday converts w to the standard library representation. The second
// return value is false for WeekdayUnspecified.
func (w Weekday) TimeWeekday() (time.Weekday, bool) {
	switch w {
	case Monday:
		return time.Monday, true
	case Tuesday:
		return time.Tuesday, true
	case Wednesday:
		return time.Wednesday, true
	case Thursday:
		return time.Thursday, true
	case Friday:
		return time.Friday, true
	case Saturday:
		return time.Saturday, true
	case Sunday:
		return time.Sunday, true
	case WeekdayUnspecified:
		return time.Sunday, false
	default:
		return time.Sunday, false
	}
}

func (w Weekday) String() string {
	day, ok := w.TimeWeekday()
	if !ok {
		return "unspecified"
	}
	return day.String()
}
