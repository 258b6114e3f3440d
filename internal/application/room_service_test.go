package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
)

type failingRoomRepo struct {
	persistence.RoomRepository
	err error
}

func (r failingRoomRepo) ListRooms(context.Context) ([]persistence.Room, error) {
	return nil, r.err
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRoomService_CreateRoom(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	t.Run("persists trimmed input", func(t *testing.T) {
		store := memory.New()
		svc := NewRoomService(store, sequentialIDs("room-"), fixedClock(now))

		room, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Input: RoomInput{Name: "  Lab A ", Location: " 2F ", Capacity: 12},
		})
		require.NoError(t, err)
		assert.Equal(t, "room-1", room.ID)
		assert.Equal(t, "Lab A", room.Name)
		assert.Equal(t, "2F", room.Location)
		assert.Equal(t, now, room.CreatedAt)

		stored, err := store.GetRoom(context.Background(), "room-1")
		require.NoError(t, err)
		assert.Equal(t, 12, stored.Capacity)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc := NewRoomService(memory.New(), sequentialIDs("room-"), fixedClock(now)).WithMaxCapacity(50)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{Input: RoomInput{Capacity: 0}})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "name")
		assert.Contains(t, vErr.FieldErrors, "capacity")

		_, err = svc.CreateRoom(context.Background(), CreateRoomParams{Input: RoomInput{Name: "Hall", Capacity: 51}})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "capacity must not exceed 50", vErr.FieldErrors["capacity"])
	})

	t.Run("duplicate id", func(t *testing.T) {
		store := memory.New()
		svc := NewRoomService(store, func() string { return "room-1" }, fixedClock(now))

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{Input: RoomInput{Name: "A", Capacity: 1}})
		require.NoError(t, err)
		_, err = svc.CreateRoom(context.Background(), CreateRoomParams{Input: RoomInput{Name: "B", Capacity: 1}})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	created := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	store := memory.New()
	require.NoError(t, store.CreateRoom(context.Background(), persistence.Room{
		ID: "room-1", Name: "A", Capacity: 4, CreatedAt: created, UpdatedAt: created,
	}))
	svc := NewRoomService(store, nil, fixedClock(later))

	room, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
		RoomID: "room-1",
		Input:  RoomInput{Name: "A+", Capacity: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, created, room.CreatedAt)
	assert.Equal(t, later, room.UpdatedAt)
	assert.Equal(t, 8, room.Capacity)

	_, err = svc.UpdateRoom(context.Background(), UpdateRoomParams{RoomID: "missing", Input: RoomInput{Name: "x", Capacity: 1}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomService_DeleteRoom(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	store := memory.New()
	require.NoError(t, store.CreateRoom(ctx, persistence.Room{ID: "busy", Name: "Busy", Capacity: 4}))
	require.NoError(t, store.CreateRoom(ctx, persistence.Room{ID: "free", Name: "Free", Capacity: 4}))
	roomID := "busy"
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{{
		ID: "s1", Title: "t", StartsAt: base, EndsAt: base.Add(time.Hour), RoomID: &roomID,
	}}))

	svc := NewRoomService(store, nil, nil)

	assert.ErrorIs(t, svc.DeleteRoom(ctx, "busy"), ErrInUse)
	require.NoError(t, svc.DeleteRoom(ctx, "free"))
	assert.ErrorIs(t, svc.DeleteRoom(ctx, "free"), ErrNotFound)
}

func TestRoomService_ListRooms(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateRoom(ctx, persistence.Room{ID: "2", Name: "Beta", Capacity: 1}))
	require.NoError(t, store.CreateRoom(ctx, persistence.Room{ID: "1", Name: "Alpha", Capacity: 1}))

	rooms, err := NewRoomService(store, nil, nil).ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Alpha", rooms[0].Name)
	assert.Equal(t, "Beta", rooms[1].Name)

	boom := errors.New("boom")
	_, err = NewRoomService(failingRoomRepo{err: boom}, nil, nil).ListRooms(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestRoomService_NotConfigured(t *testing.T) {
	var svc *RoomService
	_, err := svc.ListRooms(context.Background())
	assert.Error(t, err)
}
