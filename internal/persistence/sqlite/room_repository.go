package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/session-scheduler/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository.
type RoomRepository struct {
	pool  *ConnectionPool
	retry *RetryHelper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool, retry *RetryHelper) *RoomRepository {
	return &RoomRepository{pool: pool, retry: retry}
}

const roomColumns = `id, name, location, capacity, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	const query = `
		INSERT INTO rooms (id, name, location, capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			room.ID,
			room.Name,
			room.Location,
			room.Capacity,
			formatTimestamp(room.CreatedAt),
			formatTimestamp(room.UpdatedAt),
		)
		return err
	})
}

// UpdateRoom overwrites name, location, capacity and updated_at.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	const query = `
		UPDATE rooms
		SET name = ?, location = ?, capacity = ?, updated_at = ?
		WHERE id = ?`

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, query,
			room.Name,
			room.Location,
			room.Capacity,
			formatTimestamp(room.UpdatedAt),
			room.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := []persistence.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Rooms still referenced by sessions are kept and
// ErrForeignKeyViolation is returned.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		createdAt, updatedAt string
		err                  error
	)
	if err = row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, err
	}
	if room.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
