package testfixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/persistence"
)

func TestSessionFixturesDoNotOverlap(t *testing.T) {
	a := NewSessionFixture()
	b := NewSessionFixture(WithSessionTeachers("t1"), WithSessionGroup("g1", ""))

	assert.False(t, a.Start.Before(b.End) && b.Start.Before(a.End))
	assert.Equal(t, []string{"t1"}, b.Input().Resources.TeacherIDs)
	assert.Nil(t, b.Persistence().RoomID)
	require.NotNil(t, b.Persistence().GroupID)
}

func TestServiceFactoryWithSQLiteHarness(t *testing.T) {
	ctx := context.Background()
	storage := NewSQLiteStorage(t)
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("fx")))
	services := factory.Build(storage)

	room, err := services.Rooms.CreateRoom(ctx, application.CreateRoomParams{Input: NewRoomFixture(WithRoomCapacity(3)).Input()})
	require.NoError(t, err)
	assert.Equal(t, "fx-1", room.ID)
	assert.Equal(t, ReferenceTime(), room.CreatedAt)

	result, err := services.Sessions.CreateSeries(ctx, application.CreateSeriesParams{
		Title:     "Algebra",
		Rule:      NewRuleFixture(),
		Resources: application.Resources{RoomID: &room.ID, TeacherIDs: []string{"t1"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Sessions, 4)

	stored, err := storage.ListSessions(ctx, persistence.SessionFilter{SeriesID: result.Series.ID})
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	fixture := NewSessionFixture(
		WithSessionWindow(result.Sessions[0].Start, result.Sessions[0].End),
		WithSessionTeachers("t1"),
	)
	_, err = services.Sessions.CreateSessions(ctx, application.CreateSessionsParams{
		Sessions: []application.SessionInput{fixture.Input()},
	})
	var conflictErr *application.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, conflictErr.Conflicts, 1)
}

func TestSeedRooms(t *testing.T) {
	storage := NewSQLiteStorage(t)
	first := NewRoomFixture(WithRoomName("Annex"))
	second := NewRoomFixture(WithRoomID("lab"), WithRoomName("Lab"))
	SeedRooms(t, storage, first, second)

	rooms, err := storage.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID)
	assert.Equal(t, "lab", rooms[1].ID)
}
