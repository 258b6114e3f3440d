package recurrence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

const (
	// MinFrequencyWeeks and MaxFrequencyWeeks bound Rule.FrequencyWeeks.
	MinFrequencyWeeks = 1
	MaxFrequencyWeeks = 52

	daysPerWeek = 7
)

var (
	minDurationHours = decimal.RequireFromString("0.5")
	maxDurationHours = decimal.NewFromInt(24)

	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// ErrInfeasibleRule indicates an operation needed occurrences from a rule
// that does not validate.
var ErrInfeasibleRule = errors.New("recurrence: rule cannot produce occurrences")

const (
	msgRangeOrder     = "Start date must precede or equal end date"
	msgFrequency      = "Frequency must be between 1 and 52 weeks"
	msgDuration       = "Duration must be between 0.5 and 24 hours"
	msgWeekday        = "Invalid day of the week"
	msgClockTime      = "Please provide a valid time format (HH:MM)"
	msgSameDayFreq    = "Frequency must be 1 week when start and end dates are the same"
	msgNoOccurrence   = "No valid sessions can be generated; selected day does not match the date range"
	layoutCalendarDay = "2006-01-02"
)

// Rule is a weekly recurrence: every FrequencyWeeks weeks on Weekday at
// ClockTime, lasting DurationHours, between RangeStart and RangeEnd.
//
// Calendar arithmetic happens in RangeStart's location. Range bounds are
// compared by calendar date, so a range ending on a Monday includes that
// Monday's occurrence regardless of its clock time.
type Rule struct {
	// SourceID is copied onto each occurrence and never interpreted.
	SourceID       string
	Weekday        Weekday
	RangeStart     time.Time
	RangeEnd       time.Time
	FrequencyWeeks int
	ClockTime      string
	DurationHours  decimal.Decimal
}

// Occurrence is one concrete instance of a Rule.
type Occurrence struct {
	SourceID string
	Sequence int
	Start    time.Time
	End      time.Time
}

// ValidationOutcome reports whether a rule can generate occurrences.
type ValidationOutcome struct {
	Valid          bool
	Message        string
	EstimatedCount mo.Option[int]
}

func invalid(message string) ValidationOutcome {
	return ValidationOutcome{Message: message, EstimatedCount: mo.None[int]()}
}

func valid(count int) ValidationOutcome {
	return ValidationOutcome{Valid: true, EstimatedCount: mo.Some(count)}
}

// Duration converts DurationHours to a time.Duration without float rounding.
func (r Rule) Duration() time.Duration {
	return time.Duration(r.DurationHours.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
}

func (r Rule) location() *time.Location {
	return r.RangeStart.Location()
}

func (r Rule) startDate() time.Time {
	return dateOf(r.RangeStart, r.location())
}

func (r Rule) endDate() time.Time {
	return dateOf(r.RangeEnd, r.location())
}

// clock returns the hour and minute of ClockTime.
func (r Rule) clock() (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(r.ClockTime)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, true
}

// firstDate is the first date on or after RangeStart that falls on Weekday.
func (r Rule) firstDate() (time.Time, bool) {
	target, ok := r.Weekday.TimeWeekday()
	if !ok {
		return time.Time{}, false
	}
	return alignForward(r.startDate(), target), true
}

// Validate checks rule feasibility. Checks run in a fixed order and stop at
// the first failure.
func Validate(rule Rule) ValidationOutcome {
	if rule.RangeStart.After(rule.RangeEnd) {
		return invalid(msgRangeOrder)
	}
	if rule.FrequencyWeeks < MinFrequencyWeeks || rule.FrequencyWeeks > MaxFrequencyWeeks {
		return invalid(msgFrequency)
	}
	if rule.DurationHours.LessThan(minDurationHours) || rule.DurationHours.GreaterThan(maxDurationHours) {
		return invalid(msgDuration)
	}
	target, ok := rule.Weekday.TimeWeekday()
	if !ok {
		return invalid(msgWeekday)
	}
	if _, _, ok := rule.clock(); !ok {
		return invalid(msgClockTime)
	}

	start, end := rule.startDate(), rule.endDate()
	if start.Equal(end) {
		if start.Weekday() != target {
			return invalid(fmt.Sprintf("Selected day (%s) does not match the date (%s, %s)",
				rule.Weekday, start.Weekday(), start.Format(layoutCalendarDay)))
		}
		if rule.FrequencyWeeks != 1 {
			return invalid(msgSameDayFreq)
		}
		return valid(1)
	}

	required := (rule.FrequencyWeeks-1)*daysPerWeek + 1
	if actual := spanDays(rule.RangeStart, rule.RangeEnd); actual < required {
		return invalid(fmt.Sprintf("Date range is too short for a frequency of %d weeks: at least %d days required, got %d",
			rule.FrequencyWeeks, required, actual))
	}

	first := alignForward(start, target)
	if first.After(end) {
		return invalid(msgNoOccurrence)
	}

	weeks := daysBetween(first, end) / daysPerWeek
	return valid(weeks/rule.FrequencyWeeks + 1)
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func alignForward(date time.Time, target time.Weekday) time.Time {
	offset := (int(target) - int(date.Weekday()) + daysPerWeek) % daysPerWeek
	return date.AddDate(0, 0, offset)
}

// daysBetween counts calendar days from a to b. DST transitions do not
// affect the result.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}

// spanDays is the elapsed time between two instants in whole days, rounded up.
func spanDays(start, end time.Time) int {
	elapsed := end.Sub(start)
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}
