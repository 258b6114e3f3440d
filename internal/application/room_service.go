package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/persistence"
)

// RoomService orchestrates validation and persistence for the room catalog.
type RoomService struct {
	rooms       persistence.RoomRepository
	idGenerator func() string
	now         func() time.Time
	maxCapacity int
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: logging.OrDefault(logger)}
}

// WithMaxCapacity rejects rooms larger than n. Zero means unlimited.
func (s *RoomService) WithMaxCapacity(n int) *RoomService {
	if n > 0 {
		s.maxCapacity = n
	}
	return s
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, s.logger, "service", "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if vErr := s.validateRoomInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	room = Room{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(params.Input.Name),
		Location:  strings.TrimSpace(params.Input.Location),
		Capacity:  params.Input.Capacity,
		CreatedAt: s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if err = s.rooms.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		err = mapRoomRepoError(err)
		room = Room{}
	}
	return
}

// UpdateRoom validates input and updates an existing room.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "room_id", params.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	existing, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	if vErr := s.validateRoomInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := fromPersistenceRoom(existing)
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Location = strings.TrimSpace(params.Input.Location)
	updated.Capacity = params.Input.Capacity
	updated.UpdatedAt = s.now()

	if err = s.rooms.UpdateRoom(ctx, toPersistenceRoom(updated)); err != nil {
		err = mapRoomRepoError(err)
		return
	}
	room = updated
	return
}

// GetRoom returns one room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		if !errors.Is(err, ErrNotFound) {
			s.loggerWith(ctx, "GetRoom", "room_id", roomID).
				ErrorContext(ctx, "failed to get room", "error", err, "error_kind", ErrorKind(err))
		}
		return Room{}, err
	}
	return fromPersistenceRoom(room), nil
}

// DeleteRoom removes a room that no session references.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "room_id", roomID)

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// ListRooms returns the catalog ordered by name.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil || s.rooms == nil {
		return nil, fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	raw, err := s.rooms.ListRooms(ctx)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	rooms = make([]Room, len(raw))
	for i, r := range raw {
		rooms[i] = fromPersistenceRoom(r)
	}
	return
}

func (s *RoomService) validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	} else if s.maxCapacity > 0 && input.Capacity > s.maxCapacity {
		vErr.add("capacity", fmt.Sprintf("capacity must not exceed %d", s.maxCapacity))
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrInUse
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return err
}

func toPersistenceRoom(r Room) persistence.Room {
	return persistence.Room{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Capacity:  r.Capacity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromPersistenceRoom(r persistence.Room) Room {
	return Room{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Capacity:  r.Capacity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
