package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// SeriesRepository stores series together with their generated sessions.
// Writes are atomic: either the series and every session are stored, or
// nothing is.
type SeriesRepository interface {
	CreateSeries(ctx context.Context, series Series, sessions []Session) error
	// ReplaceSeries updates the series row and swaps its sessions for the
	// supplied ones.
	ReplaceSeries(ctx context.Context, series Series, sessions []Session) error
	GetSeries(ctx context.Context, id string) (Series, error)
	// DeleteSeries removes the series and all of its sessions.
	DeleteSeries(ctx context.Context, id string) error
}

// SessionFilter narrows session listings. Empty fields are ignored.
type SessionFilter struct {
	StartsAfter *time.Time
	EndsBefore  *time.Time
	SeriesID    string
	GroupID     string
	RoomID      string
	StudentID   string
	TeacherID   string
}

// OverlapQuery selects sessions that intersect [Start, End) and could share
// a resource: the same group in the same room (a nil room matches only a nil
// room), any listed student, or any listed teacher. Sessions whose ID is in
// ExcludeIDs are skipped.
type OverlapQuery struct {
	Start      time.Time
	End        time.Time
	GroupID    *string
	RoomID     *string
	StudentIDs []string
	TeacherIDs []string
	ExcludeIDs []string
}

// SessionRepository stores individual sessions.
type SessionRepository interface {
	// CreateSessions inserts all sessions atomically.
	CreateSessions(ctx context.Context, sessions []Session) error
	UpdateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]Session, error)
}

// Storage is implemented by every storage driver.
type Storage interface {
	RoomRepository
	SeriesRepository
	SessionRepository
	Migrate(ctx context.Context) error
	Close() error
}
