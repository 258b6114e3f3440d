package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/session-scheduler/internal/persistence"
)

// --- RoomRepository implementation ---

func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, location, capacity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		room.ID, room.Name, room.Location, room.Capacity, room.CreatedAt, room.UpdatedAt,
	)
	return mapError(err)
}

func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET name = $1, location = $2, capacity = $3, updated_at = $4 WHERE id = $5`,
		room.Name, room.Location, room.Capacity, room.UpdatedAt, room.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var room persistence.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, location, capacity, created_at, updated_at FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	room.CreatedAt, room.UpdatedAt = room.CreatedAt.UTC(), room.UpdatedAt.UTC()
	return room, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, location, capacity, created_at, updated_at
		 FROM rooms
		 ORDER BY name COLLATE "C", id COLLATE "C"`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := []persistence.Room{}
	for rows.Next() {
		var room persistence.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		room.CreatedAt, room.UpdatedAt = room.CreatedAt.UTC(), room.UpdatedAt.UTC()
		rooms = append(rooms, room)
	}
	return rooms, mapError(rows.Err())
}

func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// --- SeriesRepository implementation ---

func (s *Storage) CreateSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO series (
				id, title, weekday, range_start, range_end, frequency_weeks, clock_time,
				duration_hours, group_id, room_id, student_ids, teacher_ids, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			series.ID, series.Title, series.Weekday, dateOnly(series.RangeStart), dateOnly(series.RangeEnd),
			series.FrequencyWeeks, series.ClockTime, series.DurationHours,
			series.GroupID, series.RoomID, nonNil(series.StudentIDs), nonNil(series.TeacherIDs),
			series.CreatedAt, series.UpdatedAt,
		); err != nil {
			return err
		}
		return insertSessions(ctx, tx, sessions)
	})
	return mapError(err)
}

func (s *Storage) ReplaceSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE series
			 SET title = $1, weekday = $2, range_start = $3, range_end = $4, frequency_weeks = $5,
				 clock_time = $6, duration_hours = $7, group_id = $8, room_id = $9,
				 student_ids = $10, teacher_ids = $11, updated_at = $12
			 WHERE id = $13`,
			series.Title, series.Weekday, dateOnly(series.RangeStart), dateOnly(series.RangeEnd), series.FrequencyWeeks,
			series.ClockTime, series.DurationHours, series.GroupID, series.RoomID,
			nonNil(series.StudentIDs), nonNil(series.TeacherIDs), series.UpdatedAt, series.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return persistence.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE series_id = $1`, series.ID); err != nil {
			return err
		}
		return insertSessions(ctx, tx, sessions)
	})
	return mapError(err)
}

func (s *Storage) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	var series persistence.Series
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, weekday, range_start, range_end, frequency_weeks, clock_time,
			duration_hours, group_id, room_id, student_ids, teacher_ids, created_at, updated_at
		 FROM series WHERE id = $1`, id,
	).Scan(
		&series.ID, &series.Title, &series.Weekday, &series.RangeStart, &series.RangeEnd,
		&series.FrequencyWeeks, &series.ClockTime, &series.DurationHours,
		&series.GroupID, &series.RoomID, &series.StudentIDs, &series.TeacherIDs,
		&series.CreatedAt, &series.UpdatedAt,
	)
	if err != nil {
		return persistence.Series{}, mapError(err)
	}
	series.StudentIDs = emptyToNil(series.StudentIDs)
	series.TeacherIDs = emptyToNil(series.TeacherIDs)
	series.CreatedAt, series.UpdatedAt = series.CreatedAt.UTC(), series.UpdatedAt.UTC()
	return series, nil
}

func (s *Storage) DeleteSeries(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM series WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// --- SessionRepository implementation ---

const sessionColumns = `id, series_id, sequence, title, starts_at, ends_at, group_id, room_id,
	student_ids, teacher_ids, created_at, updated_at`

func (s *Storage) CreateSessions(ctx context.Context, sessions []persistence.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return insertSessions(ctx, tx, sessions)
	}))
}

func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions
		 SET series_id = $1, sequence = $2, title = $3, starts_at = $4, ends_at = $5,
			 group_id = $6, room_id = $7, student_ids = $8, teacher_ids = $9, updated_at = $10
		 WHERE id = $11`,
		session.SeriesID, session.Sequence, session.Title, session.StartsAt, session.EndsAt,
		session.GroupID, session.RoomID, nonNil(session.StudentIDs), nonNil(session.TeacherIDs),
		session.UpdatedAt, session.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	sessions, err := s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		return persistence.Session{}, err
	}
	if len(sessions) == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return sessions[0], nil
}

func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var (
		a          args
		conditions []string
	)
	if filter.StartsAfter != nil {
		conditions = append(conditions, "ends_at > "+a.add(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "starts_at < "+a.add(*filter.EndsBefore))
	}
	if filter.SeriesID != "" {
		conditions = append(conditions, "series_id = "+a.add(filter.SeriesID))
	}
	if filter.GroupID != "" {
		conditions = append(conditions, "group_id = "+a.add(filter.GroupID))
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = "+a.add(filter.RoomID))
	}
	if filter.StudentID != "" {
		conditions = append(conditions, a.add(filter.StudentID)+" = ANY(student_ids)")
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, a.add(filter.TeacherID)+" = ANY(teacher_ids)")
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY starts_at, id COLLATE "C"`
	return s.querySessions(ctx, query, a...)
}

func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// FindOverlapping pre-filters with the window and the && array operator.
func (s *Storage) FindOverlapping(ctx context.Context, q persistence.OverlapQuery) ([]persistence.Session, error) {
	var (
		a         args
		resources []string
	)
	window := "starts_at < " + a.add(q.End) + " AND ends_at > " + a.add(q.Start)

	if q.GroupID != nil {
		resources = append(resources, "(group_id = "+a.add(*q.GroupID)+" AND room_id IS NOT DISTINCT FROM "+a.add(q.RoomID)+"::text)")
	}
	if len(q.StudentIDs) > 0 {
		resources = append(resources, "student_ids && "+a.add(q.StudentIDs)+"::text[]")
	}
	if len(q.TeacherIDs) > 0 {
		resources = append(resources, "teacher_ids && "+a.add(q.TeacherIDs)+"::text[]")
	}
	if len(resources) == 0 {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + window
	if len(q.ExcludeIDs) > 0 {
		query += " AND NOT (id = ANY(" + a.add(q.ExcludeIDs) + "::text[]))"
	}
	query += " AND (" + strings.Join(resources, " OR ") + `) ORDER BY starts_at, id COLLATE "C"`
	return s.querySessions(ctx, query, a...)
}

func (s *Storage) querySessions(ctx context.Context, query string, arguments ...any) ([]persistence.Session, error) {
	rows, err := s.pool.Query(ctx, query, arguments...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		var session persistence.Session
		if err := rows.Scan(
			&session.ID, &session.SeriesID, &session.Sequence, &session.Title,
			&session.StartsAt, &session.EndsAt, &session.GroupID, &session.RoomID,
			&session.StudentIDs, &session.TeacherIDs, &session.CreatedAt, &session.UpdatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		session.StudentIDs = emptyToNil(session.StudentIDs)
		session.TeacherIDs = emptyToNil(session.TeacherIDs)
		session.StartsAt, session.EndsAt = session.StartsAt.UTC(), session.EndsAt.UTC()
		session.CreatedAt, session.UpdatedAt = session.CreatedAt.UTC(), session.UpdatedAt.UTC()
		sessions = append(sessions, session)
	}
	return sessions, mapError(rows.Err())
}

func insertSessions(ctx context.Context, tx pgx.Tx, sessions []persistence.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, session := range sessions {
		batch.Queue(
			`INSERT INTO sessions (`+sessionColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			session.ID, session.SeriesID, session.Sequence, session.Title,
			session.StartsAt, session.EndsAt, session.GroupID, session.RoomID,
			nonNil(session.StudentIDs), nonNil(session.TeacherIDs),
			session.CreatedAt, session.UpdatedAt,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// dateOnly drops the clock and zone from a series bound so the DATE column
// stores the calendar day the caller sees.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
