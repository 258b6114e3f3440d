package persistence

import "slices"

// MatchesFilter applies a SessionFilter in memory. Range bounds use the same
// half-open semantics as the SQL drivers.
func MatchesFilter(session Session, filter SessionFilter) bool {
	if filter.StartsAfter != nil && !session.EndsAt.After(*filter.StartsAfter) {
		return false
	}
	if filter.EndsBefore != nil && !session.StartsAt.Before(*filter.EndsBefore) {
		return false
	}
	if filter.SeriesID != "" && (session.SeriesID == nil || *session.SeriesID != filter.SeriesID) {
		return false
	}
	if filter.GroupID != "" && (session.GroupID == nil || *session.GroupID != filter.GroupID) {
		return false
	}
	if filter.RoomID != "" && (session.RoomID == nil || *session.RoomID != filter.RoomID) {
		return false
	}
	if filter.StudentID != "" && !slices.Contains(session.StudentIDs, filter.StudentID) {
		return false
	}
	if filter.TeacherID != "" && !slices.Contains(session.TeacherIDs, filter.TeacherID) {
		return false
	}
	return true
}

// MatchesOverlap applies an OverlapQuery in memory.
func MatchesOverlap(session Session, query OverlapQuery) bool {
	if slices.Contains(query.ExcludeIDs, session.ID) {
		return false
	}
	if !session.StartsAt.Before(query.End) || !query.Start.Before(session.EndsAt) {
		return false
	}
	if query.GroupID != nil && session.GroupID != nil && *query.GroupID == *session.GroupID && equalOptional(query.RoomID, session.RoomID) {
		return true
	}
	return intersects(session.StudentIDs, query.StudentIDs) || intersects(session.TeacherIDs, query.TeacherIDs)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intersects(values, targets []string) bool {
	for _, v := range values {
		if slices.Contains(targets, v) {
			return true
		}
	}
	return false
}
