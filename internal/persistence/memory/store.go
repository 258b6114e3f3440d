// Package memory provides a map-backed persistence.Storage used by tests and
// by the "memory" storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/session-scheduler/internal/persistence"
)

// Storage keeps every record in process memory.
type Storage struct {
	mu       sync.RWMutex
	rooms    map[string]persistence.Room
	series   map[string]persistence.Series
	sessions map[string]persistence.Session
}

var _ persistence.Storage = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		rooms:    make(map[string]persistence.Room),
		series:   make(map[string]persistence.Series),
		sessions: make(map[string]persistence.Session),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Migrate is a no-op.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- RoomRepository implementation ---

func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// DeleteRoom refuses to remove a room that sessions still reference.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, session := range s.sessions {
		if session.RoomID != nil && *session.RoomID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.rooms, id)
	return nil
}

// --- SeriesRepository implementation ---

func (s *Storage) CreateSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[series.ID]; ok {
		return fmt.Errorf("memory: series %s: %w", series.ID, persistence.ErrDuplicate)
	}
	if err := s.checkSessionsLocked(sessions, nil); err != nil {
		return err
	}

	s.series[series.ID] = cloneSeries(series)
	for _, session := range sessions {
		s.sessions[session.ID] = cloneSession(session)
	}
	return nil
}

func (s *Storage) ReplaceSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[series.ID]; !ok {
		return persistence.ErrNotFound
	}

	replaced := make(map[string]bool)
	for id, session := range s.sessions {
		if session.SeriesID != nil && *session.SeriesID == series.ID {
			replaced[id] = true
		}
	}
	if err := s.checkSessionsLocked(sessions, replaced); err != nil {
		return err
	}

	for id := range replaced {
		delete(s.sessions, id)
	}
	s.series[series.ID] = cloneSeries(series)
	for _, session := range sessions {
		s.sessions[session.ID] = cloneSession(session)
	}
	return nil
}

func (s *Storage) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[id]
	if !ok {
		return persistence.Series{}, persistence.ErrNotFound
	}
	return cloneSeries(series), nil
}

func (s *Storage) DeleteSeries(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.series, id)
	for sessionID, session := range s.sessions {
		if session.SeriesID != nil && *session.SeriesID == id {
			delete(s.sessions, sessionID)
		}
	}
	return nil
}

// --- SessionRepository implementation ---

func (s *Storage) CreateSessions(ctx context.Context, sessions []persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSessionsLocked(sessions, nil); err != nil {
		return err
	}
	for _, session := range sessions {
		s.sessions[session.ID] = cloneSession(session)
	}
	return nil
}

func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkReferencesLocked(session); err != nil {
		return err
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []persistence.Session
	for _, session := range s.sessions {
		if persistence.MatchesFilter(session, filter) {
			sessions = append(sessions, cloneSession(session))
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Storage) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []persistence.Session
	for _, session := range s.sessions {
		if persistence.MatchesOverlap(session, query) {
			sessions = append(sessions, cloneSession(session))
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

// checkSessionsLocked rejects duplicate ids and dangling references. Ids in
// replacing may be reused.
func (s *Storage) checkSessionsLocked(sessions []persistence.Session, replacing map[string]bool) error {
	seen := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		if session.ID == "" || !session.StartsAt.Before(session.EndsAt) {
			return persistence.ErrConstraintViolation
		}
		if _, exists := s.sessions[session.ID]; (exists && !replacing[session.ID]) || seen[session.ID] {
			return fmt.Errorf("memory: session %s: %w", session.ID, persistence.ErrDuplicate)
		}
		seen[session.ID] = true
		if err := s.checkReferencesLocked(session); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) checkReferencesLocked(session persistence.Session) error {
	if session.RoomID != nil {
		if _, ok := s.rooms[*session.RoomID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

func sortSessions(sessions []persistence.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartsAt.Equal(sessions[j].StartsAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartsAt.Before(sessions[j].StartsAt)
	})
}

func cloneSeries(series persistence.Series) persistence.Series {
	clone := series
	clone.GroupID = cloneString(series.GroupID)
	clone.RoomID = cloneString(series.RoomID)
	clone.StudentIDs = append([]string(nil), series.StudentIDs...)
	clone.TeacherIDs = append([]string(nil), series.TeacherIDs...)
	return clone
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	clone.SeriesID = cloneString(session.SeriesID)
	clone.GroupID = cloneString(session.GroupID)
	clone.RoomID = cloneString(session.RoomID)
	clone.StudentIDs = append([]string(nil), session.StudentIDs...)
	clone.TeacherIDs = append([]string(nil), session.TeacherIDs...)
	return clone
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
