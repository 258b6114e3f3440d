package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/session-scheduler/internal/scheduler"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	assert.Empty(t, nilErr.Error())
	assert.False(t, nilErr.HasErrors())
	assert.False(t, (&ValidationError{}).HasErrors())

	base := &ValidationError{}
	base.add("rule.weekday", "weekday is required")
	base.add("rule.weekday", "ignored")
	assert.Equal(t, "validation failed", base.Error())
	assert.Equal(t, "weekday is required", base.FieldErrors["rule.weekday"])

	base.merge("sessions[1].", &ValidationError{FieldErrors: map[string]string{"end": "end must be after start"}})
	base.merge("", nil)
	assert.Equal(t, map[string]string{
		"rule.weekday":    "weekday is required",
		"sessions[1].end": "end must be after start",
	}, base.FieldErrors)
	assert.True(t, base.HasErrors())
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	var nilErr *ConflictError
	assert.Empty(t, nilErr.Error())

	one := &ConflictError{Conflicts: []scheduler.Conflict{{Type: scheduler.ConflictTeachers, Message: "teacher t1 is double-booked"}}}
	assert.Equal(t, "schedule conflict: teacher t1 is double-booked", one.Error())

	two := &ConflictError{Conflicts: make([]scheduler.Conflict, 2)}
	assert.Equal(t, "schedule conflict: 2 conflicts", two.Error())
}
