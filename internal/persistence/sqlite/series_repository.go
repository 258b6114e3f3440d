package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/session-scheduler/internal/persistence"
)

// SeriesRepository implements persistence.SeriesRepository. A series and its
// sessions are always written in one transaction.
type SeriesRepository struct {
	pool  *ConnectionPool
	retry *RetryHelper
}

// NewSeriesRepository creates a new SQLite series repository.
func NewSeriesRepository(pool *ConnectionPool, retry *RetryHelper) *SeriesRepository {
	return &SeriesRepository{pool: pool, retry: retry}
}

func (r *SeriesRepository) CreateSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	const query = `
		INSERT INTO series (
			id, title, weekday, range_start, range_end, frequency_weeks, clock_time,
			duration_hours, group_id, room_id, student_ids, teacher_ids, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	students, teachers, err := encodeMembers(series)
	if err != nil {
		return err
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, query,
				series.ID,
				series.Title,
				series.Weekday,
				formatDate(series.RangeStart),
				formatDate(series.RangeEnd),
				series.FrequencyWeeks,
				series.ClockTime,
				series.DurationHours,
				nullableString(series.GroupID),
				nullableString(series.RoomID),
				students,
				teachers,
				formatTimestamp(series.CreatedAt),
				formatTimestamp(series.UpdatedAt),
			); err != nil {
				return err
			}
			return insertSessions(ctx, tx, sessions)
		})
	})
}

func (r *SeriesRepository) ReplaceSeries(ctx context.Context, series persistence.Series, sessions []persistence.Session) error {
	const query = `
		UPDATE series
		SET title = ?, weekday = ?, range_start = ?, range_end = ?, frequency_weeks = ?,
			clock_time = ?, duration_hours = ?, group_id = ?, room_id = ?,
			student_ids = ?, teacher_ids = ?, updated_at = ?
		WHERE id = ?`

	students, teachers, err := encodeMembers(series)
	if err != nil {
		return err
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, query,
				series.Title,
				series.Weekday,
				formatDate(series.RangeStart),
				formatDate(series.RangeEnd),
				series.FrequencyWeeks,
				series.ClockTime,
				series.DurationHours,
				nullableString(series.GroupID),
				nullableString(series.RoomID),
				students,
				teachers,
				formatTimestamp(series.UpdatedAt),
				series.ID,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE series_id = ?`, series.ID); err != nil {
				return err
			}
			return insertSessions(ctx, tx, sessions)
		})
	})
}

func (r *SeriesRepository) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	const query = `
		SELECT id, title, weekday, range_start, range_end, frequency_weeks, clock_time,
			duration_hours, group_id, room_id, student_ids, teacher_ids, created_at, updated_at
		FROM series
		WHERE id = ?`

	var (
		series               persistence.Series
		rangeStart, rangeEnd string
		groupID, roomID      sql.NullString
		students, teachers   string
		createdAt, updatedAt string
	)
	err := r.pool.DB().QueryRowContext(ctx, query, id).Scan(
		&series.ID,
		&series.Title,
		&series.Weekday,
		&rangeStart,
		&rangeEnd,
		&series.FrequencyWeeks,
		&series.ClockTime,
		&series.DurationHours,
		&groupID,
		&roomID,
		&students,
		&teachers,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Series{}, mapError(err)
	}

	if series.RangeStart, err = parseDate(rangeStart); err != nil {
		return persistence.Series{}, err
	}
	if series.RangeEnd, err = parseDate(rangeEnd); err != nil {
		return persistence.Series{}, err
	}
	if series.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Series{}, err
	}
	if series.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Series{}, err
	}
	if err := json.Unmarshal([]byte(students), &series.StudentIDs); err != nil {
		return persistence.Series{}, fmt.Errorf("sqlite: decode series students: %w", err)
	}
	if err := json.Unmarshal([]byte(teachers), &series.TeacherIDs); err != nil {
		return persistence.Series{}, fmt.Errorf("sqlite: decode series teachers: %w", err)
	}
	series.GroupID = optionalString(groupID)
	series.RoomID = optionalString(roomID)
	return series, nil
}

// DeleteSeries removes the series; its sessions go with it through the
// ON DELETE CASCADE foreign key.
func (r *SeriesRepository) DeleteSeries(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

func encodeMembers(series persistence.Series) (string, string, error) {
	students, err := json.Marshal(nonNil(series.StudentIDs))
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode series students: %w", err)
	}
	teachers, err := json.Marshal(nonNil(series.TeacherIDs))
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encode series teachers: %w", err)
	}
	return string(students), string(teachers), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func optionalString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
