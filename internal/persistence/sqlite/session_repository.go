package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/session-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository. Student and
// teacher ids live in session_students and session_teachers.
type SessionRepository struct {
	pool  *ConnectionPool
	retry *RetryHelper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool, retry *RetryHelper) *SessionRepository {
	return &SessionRepository{pool: pool, retry: retry}
}

const sessionColumns = `s.id, s.series_id, s.sequence, s.title, s.starts_at, s.ends_at, s.group_id, s.room_id, s.created_at, s.updated_at`

func (r *SessionRepository) CreateSessions(ctx context.Context, sessions []persistence.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return insertSessions(ctx, tx, sessions)
		})
	})
}

func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) error {
	const query = `
		UPDATE sessions
		SET series_id = ?, sequence = ?, title = ?, starts_at = ?, ends_at = ?,
			group_id = ?, room_id = ?, updated_at = ?
		WHERE id = ?`

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, query,
				nullableString(session.SeriesID),
				session.Sequence,
				session.Title,
				formatTimestamp(session.StartsAt),
				formatTimestamp(session.EndsAt),
				nullableString(session.GroupID),
				nullableString(session.RoomID),
				formatTimestamp(session.UpdatedAt),
				session.ID,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_students WHERE session_id = ?`, session.ID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_teachers WHERE session_id = ?`, session.ID); err != nil {
				return err
			}
			return insertMembers(ctx, tx, session)
		})
	})
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	sessions, err := r.query(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	if err != nil {
		return persistence.Session{}, err
	}
	if len(sessions) == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return sessions[0], nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.StartsAfter != nil {
		conditions = append(conditions, "s.ends_at > ?")
		args = append(args, formatTimestamp(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "s.starts_at < ?")
		args = append(args, formatTimestamp(*filter.EndsBefore))
	}
	if filter.SeriesID != "" {
		conditions = append(conditions, "s.series_id = ?")
		args = append(args, filter.SeriesID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, "s.group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "s.room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM session_students m WHERE m.session_id = s.id AND m.student_id = ?)")
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM session_teachers m WHERE m.session_id = s.id AND m.teacher_id = ?)")
		args = append(args, filter.TeacherID)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions s`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.starts_at ASC, s.id ASC"
	return r.query(ctx, query, args...)
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// FindOverlapping narrows candidates in SQL. The scheduler re-checks every
// returned session, so this only has to avoid false negatives.
func (r *SessionRepository) FindOverlapping(ctx context.Context, q persistence.OverlapQuery) ([]persistence.Session, error) {
	var (
		resources    []string
		resourceArgs []any
	)
	if q.GroupID != nil {
		resources = append(resources, "(s.group_id = ? AND s.room_id IS ?)")
		resourceArgs = append(resourceArgs, *q.GroupID, nullableString(q.RoomID))
	}
	if len(q.StudentIDs) > 0 {
		resources = append(resources, "EXISTS (SELECT 1 FROM session_students m WHERE m.session_id = s.id AND m.student_id IN ("+placeholders(len(q.StudentIDs))+"))")
		resourceArgs = appendStrings(resourceArgs, q.StudentIDs)
	}
	if len(q.TeacherIDs) > 0 {
		resources = append(resources, "EXISTS (SELECT 1 FROM session_teachers m WHERE m.session_id = s.id AND m.teacher_id IN ("+placeholders(len(q.TeacherIDs))+"))")
		resourceArgs = appendStrings(resourceArgs, q.TeacherIDs)
	}
	if len(resources) == 0 {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.starts_at < ? AND s.ends_at > ?`
	args := []any{formatTimestamp(q.End), formatTimestamp(q.Start)}
	if len(q.ExcludeIDs) > 0 {
		query += " AND s.id NOT IN (" + placeholders(len(q.ExcludeIDs)) + ")"
		args = appendStrings(args, q.ExcludeIDs)
	}
	query += " AND (" + strings.Join(resources, " OR ") + ") ORDER BY s.starts_at ASC, s.id ASC"
	args = append(args, resourceArgs...)
	return r.query(ctx, query, args...)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]persistence.Session, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, mapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if err := loadMembers(ctx, r.pool.DB(), sessions); err != nil {
		return nil, mapError(err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session                   persistence.Session
		seriesID, groupID, roomID sql.NullString
		startsAt, endsAt          string
		createdAt, updatedAt      string
		err                       error
	)
	if err = row.Scan(
		&session.ID,
		&seriesID,
		&session.Sequence,
		&session.Title,
		&startsAt,
		&endsAt,
		&groupID,
		&roomID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, err
	}
	if session.StartsAt, err = parseTimestamp(startsAt); err != nil {
		return persistence.Session{}, err
	}
	if session.EndsAt, err = parseTimestamp(endsAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	session.SeriesID = optionalString(seriesID)
	session.GroupID = optionalString(groupID)
	session.RoomID = optionalString(roomID)
	return session, nil
}

func insertSessions(ctx context.Context, q querier, sessions []persistence.Session) error {
	const query = `
		INSERT INTO sessions (
			id, series_id, sequence, title, starts_at, ends_at, group_id, room_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, session := range sessions {
		if _, err := q.ExecContext(ctx, query,
			session.ID,
			nullableString(session.SeriesID),
			session.Sequence,
			session.Title,
			formatTimestamp(session.StartsAt),
			formatTimestamp(session.EndsAt),
			nullableString(session.GroupID),
			nullableString(session.RoomID),
			formatTimestamp(session.CreatedAt),
			formatTimestamp(session.UpdatedAt),
		); err != nil {
			return err
		}
		if err := insertMembers(ctx, q, session); err != nil {
			return err
		}
	}
	return nil
}

func insertMembers(ctx context.Context, q querier, session persistence.Session) error {
	for _, studentID := range session.StudentIDs {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO session_students (session_id, student_id) VALUES (?, ?)`, session.ID, studentID); err != nil {
			return err
		}
	}
	for _, teacherID := range session.TeacherIDs {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO session_teachers (session_id, teacher_id) VALUES (?, ?)`, session.ID, teacherID); err != nil {
			return err
		}
	}
	return nil
}

// loadMembers fills StudentIDs and TeacherIDs, each sorted ascending.
func loadMembers(ctx context.Context, q querier, sessions []persistence.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	index := make(map[string]int, len(sessions))
	ids := make([]string, 0, len(sessions))
	for i, session := range sessions {
		index[session.ID] = i
		ids = append(ids, session.ID)
	}

	load := func(table, column string, assign func(*persistence.Session, string)) error {
		query := `SELECT session_id, ` + column + ` FROM ` + table +
			` WHERE session_id IN (` + placeholders(len(ids)) + `) ORDER BY session_id, ` + column
		rows, err := q.QueryContext(ctx, query, appendStrings(nil, ids)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sessionID, memberID string
			if err := rows.Scan(&sessionID, &memberID); err != nil {
				return err
			}
			assign(&sessions[index[sessionID]], memberID)
		}
		return rows.Err()
	}

	if err := load("session_students", "student_id", func(s *persistence.Session, id string) {
		s.StudentIDs = append(s.StudentIDs, id)
	}); err != nil {
		return err
	}
	return load("session_teachers", "teacher_id", func(s *persistence.Session, id string) {
		s.TeacherIDs = append(s.TeacherIDs, id)
	})
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}
