package application

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/scheduler"
)

var testNow = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// mondayRule yields four Monday sessions 10:00-11:30 in January 2025.
func mondayRule() RuleInput {
	return RuleInput{
		Weekday:        "Monday",
		RangeStart:     date(2025, time.January, 6),
		RangeEnd:       date(2025, time.January, 27),
		FrequencyWeeks: 1,
		ClockTime:      "10:00",
		DurationHours:  "1.5",
	}
}

func newTestSessionService(t *testing.T) (*SessionService, *memory.Storage) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateRoom(context.Background(), persistence.Room{ID: "room-a", Name: "A", Capacity: 2}))
	svc := NewSessionService(store, store, sequentialIDs("id-"), fixedClock(testNow), SessionServiceConfig{})
	return svc, store
}

func TestSessionService_ValidateRule(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	check, err := svc.ValidateRule(ctx, mondayRule())
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, 4, check.EstimatedCount.MustGet())

	rule := mondayRule()
	rule.FrequencyWeeks = 53
	check, err = svc.ValidateRule(ctx, rule)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "Frequency must be between 1 and 52 weeks", check.Message)
	assert.True(t, check.EstimatedCount.IsAbsent())

	rule = mondayRule()
	rule.DurationHours = "one hour"
	_, err = svc.ValidateRule(ctx, rule)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "duration_hours")
}

func TestSessionService_PreviewRule(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	preview, err := svc.PreviewRule(ctx, mondayRule(), 2)
	require.NoError(t, err)
	assert.True(t, preview.Check.Valid)
	assert.Equal(t, 4, preview.Total)
	require.Len(t, preview.Occurrences, 2)
	assert.Equal(t, 1, preview.Occurrences[0].Sequence)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), preview.Occurrences[0].Start)
	assert.Equal(t, time.Date(2025, 1, 13, 11, 30, 0, 0, time.UTC), preview.Occurrences[1].End)
	assert.Equal(t, 1, svc.previews.Len())

	preview.Occurrences[0].Sequence = 99
	again, err := svc.PreviewRule(ctx, mondayRule(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Occurrences[0].Sequence)
	assert.Equal(t, 1, svc.previews.Len())

	all, err := svc.PreviewRule(ctx, mondayRule(), 0)
	require.NoError(t, err)
	assert.Len(t, all.Occurrences, 4)

	rule := mondayRule()
	rule.Weekday = "Tuesday"
	rule.RangeEnd = rule.RangeStart
	invalid, err := svc.PreviewRule(ctx, rule, 5)
	require.NoError(t, err)
	assert.False(t, invalid.Check.Valid)
	assert.Empty(t, invalid.Occurrences)
}

func TestSessionService_ExportRuleICS(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	var buf bytes.Buffer
	err := svc.ExportRuleICS(ctx, mondayRule(), ICSExport{UID: "weekly@test", Summary: "Algebra"}, &buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:weekly@test")
	assert.Contains(t, out, "SUMMARY:Algebra")
	assert.Contains(t, out, "FREQ=WEEKLY")

	rule := mondayRule()
	rule.ClockTime = "25:00"
	err = svc.ExportRuleICS(ctx, rule, ICSExport{}, &buf)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Please provide a valid time format (HH:MM)", vErr.FieldErrors["rule"])
}

func TestSessionService_CreateSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("stores series and generated sessions", func(t *testing.T) {
		svc, store := newTestSessionService(t)

		result, err := svc.CreateSeries(ctx, CreateSeriesParams{
			Title: " Algebra ",
			Rule:  mondayRule(),
			Resources: Resources{
				GroupID:    ptr("g1"),
				RoomID:     ptr("room-a"),
				StudentIDs: []string{"s2", " s1", "s2"},
				TeacherIDs: []string{"t1"},
			},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, "id-1", result.Series.ID)
		assert.Equal(t, "Algebra", result.Series.Title)
		assert.Equal(t, "monday", result.Series.Rule.Weekday)
		assert.Equal(t, []string{"s1", "s2"}, result.Series.Resources.StudentIDs)
		require.Len(t, result.Sessions, 4)
		for i, s := range result.Sessions {
			assert.Equal(t, i+1, s.Sequence)
			require.NotNil(t, s.SeriesID)
			assert.Equal(t, "id-1", *s.SeriesID)
		}

		stored, err := store.ListSessions(ctx, persistence.SessionFilter{SeriesID: "id-1"})
		require.NoError(t, err)
		assert.Len(t, stored, 4)

		series, err := svc.GetSeries(ctx, "id-1")
		require.NoError(t, err)
		assert.Equal(t, "1.5", series.Rule.DurationHours)
		assert.Equal(t, date(2025, time.January, 27), series.Rule.RangeEnd)
	})

	t.Run("rejects infeasible rule", func(t *testing.T) {
		svc, _ := newTestSessionService(t)
		rule := mondayRule()
		rule.RangeEnd = date(2025, time.January, 1)

		_, err := svc.CreateSeries(ctx, CreateSeriesParams{Title: "x", Rule: rule})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "Start date must precede or equal end date", vErr.FieldErrors["rule"])
	})

	t.Run("rejects conflicts with stored sessions", func(t *testing.T) {
		svc, store := newTestSessionService(t)
		_, err := svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "first", Rule: mondayRule(), Resources: Resources{TeacherIDs: []string{"t1"}},
		})
		require.NoError(t, err)

		_, err = svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "second", Rule: mondayRule(), Resources: Resources{TeacherIDs: []string{"t1"}},
		})
		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		require.Len(t, conflictErr.Conflicts, 4)
		assert.Equal(t, scheduler.ConflictTeachers, conflictErr.Conflicts[0].Type)
		assert.True(t, conflictErr.Conflicts[0].AgainstStore())

		stored, err := store.ListSessions(ctx, persistence.SessionFilter{})
		require.NoError(t, err)
		assert.Len(t, stored, 4)
	})

	t.Run("allow overlap stores with warnings", func(t *testing.T) {
		svc, store := newTestSessionService(t)
		_, err := svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "first", Rule: mondayRule(), Resources: Resources{StudentIDs: []string{"s1"}},
		})
		require.NoError(t, err)

		result, err := svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "second", Rule: mondayRule(), Resources: Resources{StudentIDs: []string{"s1"}},
			AllowOverlap: true,
		})
		require.NoError(t, err)
		assert.Len(t, result.Warnings, 4)
		assert.Contains(t, result.Warnings[0], "student s1 is double-booked")

		stored, err := store.ListSessions(ctx, persistence.SessionFilter{})
		require.NoError(t, err)
		assert.Len(t, stored, 8)
	})

	t.Run("checks rooms", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "x", Rule: mondayRule(), Resources: Resources{RoomID: ptr("nowhere")},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "room_id")

		_, err = svc.CreateSeries(ctx, CreateSeriesParams{
			Title: "x", Rule: mondayRule(),
			Resources: Resources{RoomID: ptr("room-a"), StudentIDs: []string{"a", "b", "c"}},
		})
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "student_ids")
	})
}

func TestSessionService_UpdateSeries(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestSessionService(t)

	created, err := svc.CreateSeries(ctx, CreateSeriesParams{
		Title: "Algebra", Rule: mondayRule(), Resources: Resources{TeacherIDs: []string{"t1"}},
	})
	require.NoError(t, err)

	rule := mondayRule()
	rule.ClockTime = "10:30"
	rule.RangeEnd = date(2025, time.January, 20)
	updated, err := svc.UpdateSeries(ctx, UpdateSeriesParams{
		SeriesID:  created.Series.ID,
		Title:     "Algebra II",
		Rule:      rule,
		Resources: Resources{TeacherIDs: []string{"t1"}},
	})
	require.NoError(t, err, "own sessions must not conflict with the regenerated ones")
	assert.Equal(t, created.Series.CreatedAt, updated.Series.CreatedAt)
	require.Len(t, updated.Sessions, 3)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC), updated.Sessions[0].Start)

	stored, err := store.ListSessions(ctx, persistence.SessionFilter{SeriesID: created.Series.ID})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "Algebra II", stored[0].Title)

	_, err = svc.UpdateSeries(ctx, UpdateSeriesParams{SeriesID: "missing", Title: "x", Rule: rule})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionService_DeleteSeries(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestSessionService(t)

	created, err := svc.CreateSeries(ctx, CreateSeriesParams{Title: "x", Rule: mondayRule()})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSeries(ctx, created.Series.ID))
	stored, err := store.ListSessions(ctx, persistence.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.ErrorIs(t, svc.DeleteSeries(ctx, created.Series.ID), ErrNotFound)
}

func TestSessionService_CreateSessions(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	t.Run("validates every input", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.CreateSessions(ctx, CreateSessionsParams{})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "sessions")

		_, err = svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
			{Title: "ok", Start: start, End: start.Add(time.Hour)},
			{Title: "backwards", Start: start, End: start},
		}})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "end must be after start", vErr.FieldErrors["sessions[1].end"])
	})

	t.Run("detects conflicts inside the batch", func(t *testing.T) {
		svc, store := newTestSessionService(t)

		_, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
			{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{GroupID: ptr("g1")}},
			{Title: "b", Start: start.Add(30 * time.Minute), End: start.Add(2 * time.Hour), Resources: Resources{GroupID: ptr("g1")}},
		}})
		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		require.Len(t, conflictErr.Conflicts, 1)
		assert.Equal(t, scheduler.ConflictGroup, conflictErr.Conflicts[0].Type)
		assert.Equal(t, 1, conflictErr.Conflicts[0].OtherIndex)

		stored, err := store.ListSessions(ctx, persistence.SessionFilter{})
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("back to back sessions do not conflict", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		result, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
			{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{TeacherIDs: []string{"t1"}}},
			{Title: "b", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Resources: Resources{TeacherIDs: []string{"t1"}}},
		}})
		require.NoError(t, err)
		require.Len(t, result.Sessions, 2)
		assert.Nil(t, result.Sessions[0].SeriesID)
	})
}

func TestSessionService_UpdateSession(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestSessionService(t)
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	created, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
		{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{TeacherIDs: []string{"t1"}}},
		{Title: "b", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), Resources: Resources{TeacherIDs: []string{"t1"}}},
	}})
	require.NoError(t, err)
	first, second := created.Sessions[0], created.Sessions[1]

	moved, err := svc.UpdateSession(ctx, UpdateSessionParams{
		SessionID: first.ID,
		Input: SessionInput{
			Title: "a", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute),
			Resources: Resources{TeacherIDs: []string{"t1"}},
		},
	})
	require.NoError(t, err, "a session never conflicts with its own stored copy")
	assert.Equal(t, first.CreatedAt, moved.Session.CreatedAt)

	_, err = svc.UpdateSession(ctx, UpdateSessionParams{
		SessionID: first.ID,
		Input: SessionInput{
			Title: "a", Start: second.Start, End: second.End,
			Resources: Resources{TeacherIDs: []string{"t1"}},
		},
	})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, scheduler.ID(second.ID), conflictErr.Conflicts[0].ExistingID)

	stored, err := store.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*time.Minute), stored.StartsAt)

	_, err = svc.UpdateSession(ctx, UpdateSessionParams{SessionID: "missing", Input: SessionInput{Start: start, End: start.Add(time.Hour)}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionService_BulkUpdateSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestSessionService(t)
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	created, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
		{Title: "a", Start: start, End: start.Add(time.Hour)},
	}})
	require.NoError(t, err)

	result, err := svc.BulkUpdateSessions(ctx, BulkUpdateParams{Updates: []UpdateSessionParams{
		{SessionID: "missing", Input: SessionInput{Start: start, End: start.Add(time.Hour)}},
		{SessionID: created.Sessions[0].ID, Input: SessionInput{Title: "moved", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 2)
	assert.ErrorIs(t, result.Items[0].Err, ErrNotFound)
	require.NotNil(t, result.Items[1].Session)
	assert.Equal(t, "moved", result.Items[1].Session.Title)

	_, err = svc.BulkUpdateSessions(ctx, BulkUpdateParams{})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestSessionService_ListAndDeleteSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestSessionService(t)
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	created, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
		{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{StudentIDs: []string{"s1"}}},
		{Title: "b", Start: start.Add(24 * time.Hour), End: start.Add(25 * time.Hour), Resources: Resources{StudentIDs: []string{"s2"}}},
	}})
	require.NoError(t, err)

	found, err := svc.ListSessions(ctx, ListSessionsParams{StudentID: "s2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].Title)

	to := start.Add(2 * time.Hour)
	found, err = svc.ListSessions(ctx, ListSessionsParams{From: &start, To: &to})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].Title)

	_, err = svc.ListSessions(ctx, ListSessionsParams{From: &to, To: &start})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	require.NoError(t, svc.DeleteSession(ctx, created.Sessions[0].ID))
	_, err = svc.GetSession(ctx, created.Sessions[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionService_CheckConflicts(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestSessionService(t)
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	created, err := svc.CreateSessions(ctx, CreateSessionsParams{Sessions: []SessionInput{
		{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{RoomID: ptr("room-a"), GroupID: ptr("g1")}},
	}})
	require.NoError(t, err)

	proposal := []SessionInput{{Start: start, End: start.Add(time.Hour), Resources: Resources{RoomID: ptr("room-a"), GroupID: ptr("g1")}}}

	result, err := svc.CheckConflicts(ctx, CheckConflictsParams{Sessions: proposal})
	require.NoError(t, err)
	assert.True(t, result.HasConflict)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictGroup, result.Conflicts[0].Type)

	result, err = svc.CheckConflicts(ctx, CheckConflictsParams{Sessions: proposal, ExcludeIDs: []string{created.Sessions[0].ID}})
	require.NoError(t, err)
	assert.False(t, result.HasConflict)

	result, err = svc.CheckConflicts(ctx, CheckConflictsParams{Sessions: proposal, AllowOverlap: true})
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
	assert.Len(t, result.Warnings, 1)

	stored, err := store.ListSessions(ctx, persistence.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

type failingOverlapStore struct {
	*memory.Storage
	err error
}

func (s failingOverlapStore) FindOverlapping(context.Context, persistence.OverlapQuery) ([]persistence.Session, error) {
	return nil, s.err
}

func TestSessionService_LookupFailure(t *testing.T) {
	boom := errors.New("lookup failed")
	store := failingOverlapStore{Storage: memory.New(), err: boom}
	svc := NewSessionService(store, store, sequentialIDs("id-"), fixedClock(testNow), SessionServiceConfig{})
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	_, err := svc.CreateSessions(context.Background(), CreateSessionsParams{Sessions: []SessionInput{
		{Title: "a", Start: start, End: start.Add(time.Hour), Resources: Resources{TeacherIDs: []string{"t1"}}},
	}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "unexpected", ErrorKind(err))
}
