// Package storagetest holds the behaviour every persistence.Storage driver
// must share. Driver packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/persistence"
)

// Factory returns an empty, migrated storage. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Storage

var base = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

// Run executes the shared driver suite.
func Run(t *testing.T, open Factory) {
	t.Run("Rooms", func(t *testing.T) { testRooms(t, open(t)) })
	t.Run("RoomInUse", func(t *testing.T) { testRoomInUse(t, open(t)) })
	t.Run("Series", func(t *testing.T) { testSeries(t, open(t)) })
	t.Run("SeriesAtomicity", func(t *testing.T) { testSeriesAtomicity(t, open(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, open(t)) })
	t.Run("SessionConstraints", func(t *testing.T) { testSessionConstraints(t, open(t)) })
	t.Run("ListSessions", func(t *testing.T) { testListSessions(t, open(t)) })
	t.Run("FindOverlapping", func(t *testing.T) { testFindOverlapping(t, open(t)) })
}

func ptr(s string) *string { return &s }

func room(id, name string) persistence.Room {
	return persistence.Room{
		ID:        id,
		Name:      name,
		Location:  "Building A",
		Capacity:  30,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func session(id string, start time.Time, hours int) persistence.Session {
	return persistence.Session{
		ID:        id,
		Title:     "Session " + id,
		StartsAt:  start,
		EndsAt:    start.Add(time.Duration(hours) * time.Hour),
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func ids(sessions []persistence.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func assertSession(t *testing.T, want, got persistence.Session) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.SeriesID, got.SeriesID)
	assert.Equal(t, want.Sequence, got.Sequence)
	assert.Equal(t, want.Title, got.Title)
	assert.True(t, want.StartsAt.Equal(got.StartsAt), "starts_at: want %s, got %s", want.StartsAt, got.StartsAt)
	assert.True(t, want.EndsAt.Equal(got.EndsAt), "ends_at: want %s, got %s", want.EndsAt, got.EndsAt)
	assert.Equal(t, want.GroupID, got.GroupID)
	assert.Equal(t, want.RoomID, got.RoomID)
	assert.Equal(t, want.StudentIDs, got.StudentIDs)
	assert.Equal(t, want.TeacherIDs, got.TeacherIDs)
}

func testRooms(t *testing.T, store persistence.Storage) {
	ctx := context.Background()

	require.NoError(t, store.CreateRoom(ctx, room("r2", "Lab")))
	require.NoError(t, store.CreateRoom(ctx, room("r1", "Auditorium")))

	assert.ErrorIs(t, store.CreateRoom(ctx, room("r1", "Again")), persistence.ErrDuplicate)

	invalid := room("r3", "Closet")
	invalid.Capacity = 0
	assert.ErrorIs(t, store.CreateRoom(ctx, invalid), persistence.ErrConstraintViolation)

	got, err := store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Auditorium", got.Name)
	assert.Equal(t, "Building A", got.Location)
	assert.Equal(t, 30, got.Capacity)
	assert.True(t, base.Equal(got.CreatedAt))

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r1", rooms[0].ID)
	assert.Equal(t, "r2", rooms[1].ID)

	updated := got
	updated.Name = "Main Hall"
	updated.Capacity = 120
	updated.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateRoom(ctx, updated))

	got, err = store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Main Hall", got.Name)
	assert.Equal(t, 120, got.Capacity)
	assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))

	assert.ErrorIs(t, store.UpdateRoom(ctx, room("missing", "Nowhere")), persistence.ErrNotFound)

	require.NoError(t, store.DeleteRoom(ctx, "r2"))
	_, err = store.GetRoom(ctx, "r2")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRoom(ctx, "r2"), persistence.ErrNotFound)
}

func testRoomInUse(t *testing.T, store persistence.Storage) {
	ctx := context.Background()

	require.NoError(t, store.CreateRoom(ctx, room("r1", "Lab")))
	s := session("s1", base, 1)
	s.RoomID = ptr("r1")
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{s}))

	assert.ErrorIs(t, store.DeleteRoom(ctx, "r1"), persistence.ErrForeignKeyViolation)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	assert.NoError(t, store.DeleteRoom(ctx, "r1"))
}

func seriesFixture(id string) persistence.Series {
	return persistence.Series{
		ID:             id,
		Title:          "Algebra",
		Weekday:        "monday",
		RangeStart:     time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		RangeEnd:       time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		FrequencyWeeks: 2,
		ClockTime:      "10:00",
		DurationHours:  "1.5",
		GroupID:        ptr("g1"),
		StudentIDs:     []string{"st1", "st2"},
		TeacherIDs:     []string{"t1"},
		CreatedAt:      base,
		UpdatedAt:      base,
	}
}

func seriesSessions(seriesID string, prefix string, starts ...time.Time) []persistence.Session {
	var sessions []persistence.Session
	for i, start := range starts {
		s := session(prefix+string(rune('a'+i)), start, 1)
		s.SeriesID = ptr(seriesID)
		s.Sequence = i + 1
		s.GroupID = ptr("g1")
		sessions = append(sessions, s)
	}
	return sessions
}

func testSeries(t *testing.T, store persistence.Storage) {
	ctx := context.Background()

	series := seriesFixture("sr1")
	sessions := seriesSessions("sr1", "s", base, base.AddDate(0, 0, 14))
	require.NoError(t, store.CreateSeries(ctx, series, sessions))

	got, err := store.GetSeries(ctx, "sr1")
	require.NoError(t, err)
	assert.Equal(t, "monday", got.Weekday)
	assert.Equal(t, "2025-01-06", got.RangeStart.Format("2006-01-02"))
	assert.Equal(t, "2025-01-31", got.RangeEnd.Format("2006-01-02"))
	assert.Equal(t, 2, got.FrequencyWeeks)
	assert.Equal(t, "10:00", got.ClockTime)
	assert.Equal(t, "1.5", got.DurationHours)
	assert.Equal(t, ptr("g1"), got.GroupID)
	assert.Nil(t, got.RoomID)
	assert.Equal(t, []string{"st1", "st2"}, got.StudentIDs)
	assert.Equal(t, []string{"t1"}, got.TeacherIDs)

	listed, err := store.ListSessions(ctx, persistence.SessionFilter{SeriesID: "sr1"})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assertSession(t, sessions[0], listed[0])
	assertSession(t, sessions[1], listed[1])

	series.FrequencyWeeks = 1
	series.UpdatedAt = base.Add(time.Hour)
	replacement := seriesSessions("sr1", "n", base, base.AddDate(0, 0, 7), base.AddDate(0, 0, 14))
	require.NoError(t, store.ReplaceSeries(ctx, series, replacement))

	got, err = store.GetSeries(ctx, "sr1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.FrequencyWeeks)

	listed, err = store.ListSessions(ctx, persistence.SessionFilter{SeriesID: "sr1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"na", "nb", "nc"}, ids(listed))
	_, err = store.GetSession(ctx, "sa")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	assert.ErrorIs(t, store.ReplaceSeries(ctx, seriesFixture("missing"), nil), persistence.ErrNotFound)

	require.NoError(t, store.DeleteSeries(ctx, "sr1"))
	_, err = store.GetSeries(ctx, "sr1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	listed, err = store.ListSessions(ctx, persistence.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.ErrorIs(t, store.DeleteSeries(ctx, "sr1"), persistence.ErrNotFound)
}

func testSeriesAtomicity(t *testing.T, store persistence.Storage) {
	ctx := context.Background()

	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{session("taken", base.AddDate(0, 1, 0), 1)}))

	sessions := seriesSessions("sr1", "s", base)
	sessions = append(sessions, session("taken", base.AddDate(0, 0, 7), 1))
	err := store.CreateSeries(ctx, seriesFixture("sr1"), sessions)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	_, err = store.GetSeries(ctx, "sr1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = store.GetSession(ctx, "sa")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testSessions(t *testing.T, store persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, store.CreateRoom(ctx, room("r1", "Lab")))

	first := session("s1", base, 2)
	first.GroupID = ptr("g1")
	first.RoomID = ptr("r1")
	first.StudentIDs = []string{"st1", "st2"}
	first.TeacherIDs = []string{"t1"}
	second := session("s2", base.Add(24*time.Hour), 1)
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{first, second}))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assertSession(t, first, got)

	got, err = store.GetSession(ctx, "s2")
	require.NoError(t, err)
	assertSession(t, second, got)

	first.Title = "Moved"
	first.StartsAt = base.Add(3 * time.Hour)
	first.EndsAt = base.Add(4 * time.Hour)
	first.RoomID = nil
	first.StudentIDs = []string{"st3"}
	first.TeacherIDs = nil
	first.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateSession(ctx, first))

	got, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assertSession(t, first, got)

	assert.ErrorIs(t, store.UpdateSession(ctx, session("missing", base, 1)), persistence.ErrNotFound)

	require.NoError(t, store.DeleteSession(ctx, "s2"))
	_, err = store.GetSession(ctx, "s2")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, store.DeleteSession(ctx, "s2"), persistence.ErrNotFound)

	_, err = store.GetSession(ctx, "never")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testSessionConstraints(t *testing.T, store persistence.Storage) {
	ctx := context.Background()

	duplicate := []persistence.Session{session("s1", base, 1), session("s1", base.Add(time.Hour), 1)}
	assert.ErrorIs(t, store.CreateSessions(ctx, duplicate), persistence.ErrDuplicate)

	listed, err := store.ListSessions(ctx, persistence.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed, "a failed batch stores nothing")

	inverted := session("s2", base, 1)
	inverted.EndsAt = inverted.StartsAt
	assert.ErrorIs(t, store.CreateSessions(ctx, []persistence.Session{inverted}), persistence.ErrConstraintViolation)

	dangling := session("s3", base, 1)
	dangling.RoomID = ptr("no-such-room")
	assert.ErrorIs(t, store.CreateSessions(ctx, []persistence.Session{dangling}), persistence.ErrForeignKeyViolation)
}

func testListSessions(t *testing.T, store persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, store.CreateRoom(ctx, room("r1", "Lab")))

	a := session("a", base, 1)
	a.GroupID = ptr("g1")
	a.RoomID = ptr("r1")
	a.StudentIDs = []string{"st1"}
	b := session("b", base.Add(2*time.Hour), 1)
	b.GroupID = ptr("g2")
	b.TeacherIDs = []string{"t1"}
	c := session("c", base.Add(48*time.Hour), 1)
	c.StudentIDs = []string{"st1", "st2"}
	c.TeacherIDs = []string{"t1"}
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{c, a, b}))

	after := base.Add(90 * time.Minute)
	before := base.Add(24 * time.Hour)
	edge := base.Add(time.Hour)

	tests := []struct {
		name   string
		filter persistence.SessionFilter
		want   []string
	}{
		{name: "all in start order", filter: persistence.SessionFilter{}, want: []string{"a", "b", "c"}},
		{name: "window", filter: persistence.SessionFilter{StartsAfter: &after, EndsBefore: &before}, want: []string{"b"}},
		{name: "ending at the lower bound is excluded", filter: persistence.SessionFilter{StartsAfter: &edge}, want: []string{"b", "c"}},
		{name: "group", filter: persistence.SessionFilter{GroupID: "g2"}, want: []string{"b"}},
		{name: "room", filter: persistence.SessionFilter{RoomID: "r1"}, want: []string{"a"}},
		{name: "student", filter: persistence.SessionFilter{StudentID: "st1"}, want: []string{"a", "c"}},
		{name: "teacher", filter: persistence.SessionFilter{TeacherID: "t1"}, want: []string{"b", "c"}},
		{name: "combined", filter: persistence.SessionFilter{StudentID: "st1", TeacherID: "t1"}, want: []string{"c"}},
		{name: "no match", filter: persistence.SessionFilter{GroupID: "g9"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := store.ListSessions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(sessions))
		})
	}
}

func testFindOverlapping(t *testing.T, store persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, store.CreateRoom(ctx, room("r1", "Lab")))
	require.NoError(t, store.CreateRoom(ctx, room("r2", "Studio")))

	inRoom := session("in-room", base, 2)
	inRoom.GroupID = ptr("g1")
	inRoom.RoomID = ptr("r1")
	otherRoom := session("other-room", base, 2)
	otherRoom.GroupID = ptr("g1")
	otherRoom.RoomID = ptr("r2")
	noRoom := session("no-room", base, 2)
	noRoom.GroupID = ptr("g1")
	student := session("student", base.Add(time.Hour), 2)
	student.StudentIDs = []string{"st1", "st2"}
	teacher := session("teacher", base.Add(30*time.Minute), 1)
	teacher.TeacherIDs = []string{"t1"}
	later := session("later", base.Add(2*time.Hour), 1)
	later.GroupID = ptr("g1")
	later.RoomID = ptr("r1")
	later.StudentIDs = []string{"st1"}
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{inRoom, otherRoom, noRoom, student, teacher, later}))

	window := func(q persistence.OverlapQuery) persistence.OverlapQuery {
		q.Start = base
		q.End = base.Add(2 * time.Hour)
		return q
	}

	tests := []struct {
		name  string
		query persistence.OverlapQuery
		want  []string
	}{
		{
			name:  "same group and room",
			query: window(persistence.OverlapQuery{GroupID: ptr("g1"), RoomID: ptr("r1")}),
			want:  []string{"in-room"},
		},
		{
			name:  "group without room matches only roomless sessions",
			query: window(persistence.OverlapQuery{GroupID: ptr("g1")}),
			want:  []string{"no-room"},
		},
		{
			name:  "shared student",
			query: window(persistence.OverlapQuery{StudentIDs: []string{"st2", "st9"}}),
			want:  []string{"student"},
		},
		{
			name:  "shared teacher",
			query: window(persistence.OverlapQuery{TeacherIDs: []string{"t1"}}),
			want:  []string{"teacher"},
		},
		{
			name:  "any resource",
			query: window(persistence.OverlapQuery{GroupID: ptr("g1"), RoomID: ptr("r2"), StudentIDs: []string{"st1"}, TeacherIDs: []string{"t1"}}),
			want:  []string{"other-room", "teacher", "student"},
		},
		{
			name:  "excluded ids",
			query: window(persistence.OverlapQuery{GroupID: ptr("g1"), RoomID: ptr("r1"), StudentIDs: []string{"st1"}, ExcludeIDs: []string{"in-room"}}),
			want:  []string{"student"},
		},
		{
			name:  "no resources",
			query: window(persistence.OverlapQuery{}),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := store.FindOverlapping(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(sessions))
		})
	}
}
