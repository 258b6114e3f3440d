package recurrence

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

const defaultProductID = "-//session-scheduler//Recurring Sessions//EN"

// ICSOptions describes the event written by ExportICS.
type ICSOptions struct {
	UID       string
	Summary   string
	Location  string
	ProductID string
	Stamp     time.Time
}

// ExportICS writes rule as a VCALENDAR holding one recurring VEVENT.
func ExportICS(w io.Writer, rule Rule, opts ICSOptions) error {
	option, err := rule.RecurrenceOption()
	if err != nil {
		return err
	}

	productID := opts.ProductID
	if productID == "" {
		productID = defaultProductID
	}
	uid := opts.UID
	if uid == "" {
		uid = rule.SourceID
	}
	if uid == "" {
		return fmt.Errorf("recurrence: ics export requires a UID")
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	// All instants are UTC so the calendar needs no VTIMEZONE.
	start := option.Dtstart.UTC()
	option.Dtstart = start
	option.Until = option.Until.UTC()
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(rule.Duration()))
	if opts.Summary != "" {
		event.Props.SetText(ical.PropSummary, opts.Summary)
	}
	if opts.Location != "" {
		event.Props.SetText(ical.PropLocation, opts.Location)
	}

	// RRULE values contain ';' and ',' which SetText would escape.
	recurrence := ical.NewProp(ical.PropRecurrenceRule)
	recurrence.Value = option.RRuleString()
	event.Props.Set(recurrence)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, event.Component)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("recurrence: encode calendar: %w", err)
	}
	return nil
}
