package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/scheduler"
)

const dateLayout = "2006-01-02"

// parseDateOrTime accepts YYYY-MM-DD, read as midnight in loc, or RFC 3339.
// An empty value yields the zero time.
func parseDateOrTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

// fieldErrors collects request parsing problems as a ValidationError.
type fieldErrors map[string]string

func (f fieldErrors) add(field string, err error) {
	if _, exists := f[field]; !exists {
		f[field] = err.Error()
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f}
}

type ruleRequest struct {
	Weekday        string              `json:"weekday"`
	RangeStart     string              `json:"range_start"`
	RangeEnd       string              `json:"range_end"`
	FrequencyWeeks int                 `json:"frequency_weeks"`
	ClockTime      string              `json:"clock_time"`
	DurationHours  decimal.NullDecimal `json:"duration_hours"`
}

// toInput reads the range in loc. When range_start carries an offset the
// range_end is moved into the same zone so both share one calendar.
func (r ruleRequest) toInput(prefix string, loc *time.Location, errs fieldErrors) application.RuleInput {
	start, err := parseDateOrTime(r.RangeStart, loc)
	if err != nil {
		errs.add(prefix+"range_start", err)
	}
	end, err := parseDateOrTime(r.RangeEnd, loc)
	if err != nil {
		errs.add(prefix+"range_end", err)
	}
	if !start.IsZero() && !end.IsZero() {
		end = end.In(start.Location())
	}

	var duration string
	if r.DurationHours.Valid {
		duration = r.DurationHours.Decimal.String()
	}

	return application.RuleInput{
		Weekday:        r.Weekday,
		RangeStart:     start,
		RangeEnd:       end,
		FrequencyWeeks: r.FrequencyWeeks,
		ClockTime:      r.ClockTime,
		DurationHours:  duration,
	}
}

type ruleCheckDTO struct {
	Valid          bool   `json:"valid"`
	Message        string `json:"message,omitempty"`
	EstimatedCount *int   `json:"estimated_count,omitempty"`
}

func toRuleCheckDTO(check application.RuleCheck) ruleCheckDTO {
	dto := ruleCheckDTO{Valid: check.Valid, Message: check.Message}
	if count, ok := check.EstimatedCount.Get(); ok {
		dto.EstimatedCount = &count
	}
	return dto
}

type ruleDTO struct {
	Weekday        string `json:"weekday"`
	RangeStart     string `json:"range_start"`
	RangeEnd       string `json:"range_end"`
	FrequencyWeeks int    `json:"frequency_weeks"`
	ClockTime      string `json:"clock_time"`
	DurationHours  string `json:"duration_hours"`
}

func toRuleDTO(rule application.RuleInput) ruleDTO {
	return ruleDTO{
		Weekday:        rule.Weekday,
		RangeStart:     rule.RangeStart.Format(dateLayout),
		RangeEnd:       rule.RangeEnd.Format(dateLayout),
		FrequencyWeeks: rule.FrequencyWeeks,
		ClockTime:      rule.ClockTime,
		DurationHours:  rule.DurationHours,
	}
}

type resourcesDTO struct {
	GroupID    *string  `json:"group_id,omitempty"`
	RoomID     *string  `json:"room_id,omitempty"`
	StudentIDs []string `json:"student_ids"`
	TeacherIDs []string `json:"teacher_ids"`
}

func (r resourcesDTO) toResources() application.Resources {
	return application.Resources{
		GroupID:    r.GroupID,
		RoomID:     r.RoomID,
		StudentIDs: r.StudentIDs,
		TeacherIDs: r.TeacherIDs,
	}
}

func toResourcesDTO(r application.Resources) resourcesDTO {
	return resourcesDTO{
		GroupID:    r.GroupID,
		RoomID:     r.RoomID,
		StudentIDs: nonNil(r.StudentIDs),
		TeacherIDs: nonNil(r.TeacherIDs),
	}
}

type sessionRequest struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	resourcesDTO
}

func (r sessionRequest) toInput(prefix string, errs fieldErrors) application.SessionInput {
	start, err := parseInstant(r.Start)
	if err != nil {
		errs.add(prefix+"start", err)
	}
	end, err := parseInstant(r.End)
	if err != nil {
		errs.add(prefix+"end", err)
	}
	return application.SessionInput{
		Title:     r.Title,
		Start:     start,
		End:       end,
		Resources: r.resourcesDTO.toResources(),
	}
}

func parseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp")
	}
	return t, nil
}

func toSessionInputs(requests []sessionRequest, errs fieldErrors) []application.SessionInput {
	inputs := make([]application.SessionInput, len(requests))
	for i, req := range requests {
		inputs[i] = req.toInput(fmt.Sprintf("sessions[%d].", i), errs)
	}
	return inputs
}

type sessionDTO struct {
	ID       string  `json:"id"`
	SeriesID *string `json:"series_id,omitempty"`
	Sequence int     `json:"sequence,omitempty"`
	Title    string  `json:"title"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
	resourcesDTO
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSessionDTO(s application.Session) sessionDTO {
	return sessionDTO{
		ID:           s.ID,
		SeriesID:     s.SeriesID,
		Sequence:     s.Sequence,
		Title:        s.Title,
		Start:        s.Start.Format(time.RFC3339),
		End:          s.End.Format(time.RFC3339),
		resourcesDTO: toResourcesDTO(s.Resources),
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toSessionDTOs(sessions []application.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s))
	}
	return out
}

type seriesDTO struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Rule  ruleDTO `json:"rule"`
	resourcesDTO
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSeriesDTO(s application.Series) seriesDTO {
	return seriesDTO{
		ID:           s.ID,
		Title:        s.Title,
		Rule:         toRuleDTO(s.Rule),
		resourcesDTO: toResourcesDTO(s.Resources),
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type conflictDTO struct {
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Message    string `json:"message"`
	Index      int    `json:"index"`
	OtherIndex *int   `json:"other_index,omitempty"`
	ExistingID string `json:"existing_id,omitempty"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		dto := conflictDTO{
			Type:       string(c.Type),
			ResourceID: string(c.ResourceID),
			Start:      c.Window.Start.Format(time.RFC3339),
			End:        c.Window.End.Format(time.RFC3339),
			Message:    c.Message,
			Index:      c.Index,
			ExistingID: string(c.ExistingID),
		}
		if !c.AgainstStore() {
			other := c.OtherIndex
			dto.OtherIndex = &other
		}
		out = append(out, dto)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
