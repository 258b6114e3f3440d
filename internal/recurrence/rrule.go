package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RecurrenceOption renders rule as an RFC 5545 weekly recurrence whose
// DTSTART is the first occurrence and whose UNTIL is the last second of the
// range's final date.
func (r Rule) RecurrenceOption() (rrule.ROption, error) {
	outcome := Validate(r)
	if !outcome.Valid {
		return rrule.ROption{}, fmt.Errorf("%w: %s", ErrInfeasibleRule, outcome.Message)
	}

	occurrences, _ := Preview(r, 1)
	if len(occurrences) == 0 {
		return rrule.ROption{}, ErrInfeasibleRule
	}

	end := r.endDate()
	return rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  r.FrequencyWeeks,
		Wkst:      rrule.MO,
		Byweekday: []rrule.Weekday{rruleWeekday(r.Weekday)},
		Dtstart:   occurrences[0].Start,
		Until:     time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location()),
	}, nil
}

// RRule builds an rrule-go iterator equivalent to Generate(r).
func (r Rule) RRule() (*rrule.RRule, error) {
	option, err := r.RecurrenceOption()
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(option)
}

func rruleWeekday(day Weekday) rrule.Weekday {
	switch day {
	case Monday:
		return rrule.MO
	case Tuesday:
		return rrule.TU
	case Wednesday:
		return rrule.WE
	case Thursday:
		return rrule.TH
	case Friday:
		return rrule.FR
	case Saturday:
		return rrule.SA
	case Sunday:
		return rrule.SU
	default:
		return rrule.MO
	}
}
