package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/recurrence"
	"github.com/example/session-scheduler/internal/scheduler"
)

const defaultPreviewLimit = 10

// SessionStore captures the persistence operations needed by the service.
type SessionStore interface {
	persistence.SeriesRepository
	persistence.SessionRepository
}

// RoomCatalog exposes room lookups for existence and capacity checks.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
}

// SessionServiceConfig tunes SessionService. Zero values select defaults.
type SessionServiceConfig struct {
	// Location is used to rebuild stored series dates. Defaults to UTC.
	Location            *time.Location
	ConflictConcurrency int
	PreviewLimit        int
	PreviewCacheSize    int
	PreviewCacheTTL     time.Duration
}

// SessionService expands rules into sessions, rejects conflicting writes,
// and persists series and sessions.
type SessionService struct {
	store        SessionStore
	rooms        RoomCatalog
	detector     *scheduler.Detector
	previews     *previewCache
	location     *time.Location
	previewLimit int
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(store SessionStore, rooms RoomCatalog, idGenerator func() string, now func() time.Time, cfg SessionServiceConfig) *SessionService {
	return NewSessionServiceWithLogger(store, rooms, idGenerator, now, cfg, nil)
}

// NewSessionServiceWithLogger wires dependencies with a specified logger.
func NewSessionServiceWithLogger(store SessionStore, rooms RoomCatalog, idGenerator func() string, now func() time.Time, cfg SessionServiceConfig, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = defaultPreviewLimit
	}

	var lookup scheduler.BookingLookup
	if store != nil {
		lookup = sessionLookup{sessions: store}
	}

	return &SessionService{
		store:        store,
		rooms:        rooms,
		detector:     scheduler.NewDetector(lookup, scheduler.WithConcurrency(cfg.ConflictConcurrency)),
		previews:     newPreviewCache(cfg.PreviewCacheSize, cfg.PreviewCacheTTL),
		location:     cfg.Location,
		previewLimit: cfg.PreviewLimit,
		idGenerator:  idGenerator,
		now:          now,
		logger:       logging.OrDefault(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, s.logger, "service", "SessionService", operation, attrs...)
}

// ValidateRule reports whether a rule can generate sessions.
func (s *SessionService) ValidateRule(ctx context.Context, input RuleInput) (RuleCheck, error) {
	rule, vErr := parseRule(input, "")
	if vErr.HasErrors() {
		return RuleCheck{}, vErr
	}
	return toRuleCheck(recurrence.Validate(rule)), nil
}

// PreviewRule returns the first maxCount occurrences of a rule together with
// the total. maxCount <= 0 selects the configured default.
func (s *SessionService) PreviewRule(ctx context.Context, input RuleInput, maxCount int) (RulePreview, error) {
	if s == nil {
		return RulePreview{}, fmt.Errorf("SessionService is nil")
	}
	rule, vErr := parseRule(input, "")
	if vErr.HasErrors() {
		return RulePreview{}, vErr
	}
	if maxCount <= 0 {
		maxCount = s.previewLimit
	}

	key := previewCacheKey(rule, maxCount)
	if cached, ok := s.previews.Get(key); ok {
		return cached, nil
	}

	preview := RulePreview{Check: toRuleCheck(recurrence.Validate(rule))}
	if preview.Check.Valid {
		occurrences, total := recurrence.Preview(rule, maxCount)
		preview.Total = total
		preview.Occurrences = make([]Occurrence, len(occurrences))
		for i, occ := range occurrences {
			preview.Occurrences[i] = Occurrence{Sequence: occ.Sequence, Start: occ.Start, End: occ.End}
		}
	}

	s.previews.Store(key, preview)
	return preview, nil
}

// ExportRuleICS writes the rule as an iCalendar document.
func (s *SessionService) ExportRuleICS(ctx context.Context, input RuleInput, export ICSExport, w io.Writer) (err error) {
	if s == nil {
		return fmt.Errorf("SessionService is nil")
	}

	logger := s.loggerWith(ctx, "ExportRuleICS")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to export rule", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	rule, vErr := parseRule(input, "")
	if vErr.HasErrors() {
		return vErr
	}
	if outcome := recurrence.Validate(rule); !outcome.Valid {
		vErr.add("rule", outcome.Message)
		return vErr
	}

	uid := strings.TrimSpace(export.UID)
	if uid == "" {
		uid = s.idGenerator() + "@session-scheduler"
	}
	return recurrence.ExportICS(w, rule, recurrence.ICSOptions{
		UID:      uid,
		Summary:  strings.TrimSpace(export.Summary),
		Location: strings.TrimSpace(export.Location),
		Stamp:    s.now(),
	})
}

// CreateSeries expands the rule, rejects conflicts unless AllowOverlap is
// set, and stores the series with every generated session.
func (s *SessionService) CreateSeries(ctx context.Context, params CreateSeriesParams) (result SeriesResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSeries", "allow_overlap", params.AllowOverlap)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"series_id", result.Series.ID,
			"session_count", len(result.Sessions),
			"warning_count", len(result.Warnings),
		).InfoContext(ctx, "series created")
	}()

	now := s.now()
	draft, err := s.buildSeries(s.idGenerator(), params.Title, params.Rule, params.Resources, now, now)
	if err != nil {
		return
	}

	warnings, err := s.admit(ctx, draft.sessions, params.AllowOverlap, nil)
	if err != nil {
		return
	}

	if err = s.store.CreateSeries(ctx, draft.record(), toPersistenceSessions(draft.sessions)); err != nil {
		err = mapSessionRepoError(err)
		return
	}

	result = SeriesResult{Series: draft.series, Sessions: draft.sessions, Warnings: warnings}
	return
}

// UpdateSeries regenerates a series from a new rule. The series' current
// sessions are excluded from the store check and replaced.
func (s *SessionService) UpdateSeries(ctx context.Context, params UpdateSeriesParams) (result SeriesResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSeries", "series_id", params.SeriesID, "allow_overlap", params.AllowOverlap)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_count", len(result.Sessions),
			"warning_count", len(result.Warnings),
		).InfoContext(ctx, "series updated")
	}()

	existing, err := s.store.GetSeries(ctx, params.SeriesID)
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	current, err := s.store.ListSessions(ctx, persistence.SessionFilter{SeriesID: existing.ID})
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	exclude := scheduler.NewIDSet()
	for _, session := range current {
		exclude.Add(scheduler.ID(session.ID))
	}

	draft, err := s.buildSeries(existing.ID, params.Title, params.Rule, params.Resources, existing.CreatedAt, s.now())
	if err != nil {
		return
	}

	warnings, err := s.admit(ctx, draft.sessions, params.AllowOverlap, exclude)
	if err != nil {
		return
	}

	if err = s.store.ReplaceSeries(ctx, draft.record(), toPersistenceSessions(draft.sessions)); err != nil {
		err = mapSessionRepoError(err)
		return
	}

	result = SeriesResult{Series: draft.series, Sessions: draft.sessions, Warnings: warnings}
	return
}

// GetSeries returns a stored series.
func (s *SessionService) GetSeries(ctx context.Context, seriesID string) (Series, error) {
	if s == nil || s.store == nil {
		return Series{}, fmt.Errorf("session repository not configured")
	}
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return Series{}, mapSessionRepoError(err)
	}
	return fromPersistenceSeries(series, s.location), nil
}

// DeleteSeries removes a series and all of its sessions.
func (s *SessionService) DeleteSeries(ctx context.Context, seriesID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSeries", "series_id", seriesID)
	if err := s.store.DeleteSeries(ctx, seriesID); err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to delete series", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "series deleted")
	return nil
}

// CreateSessions stores a batch of ad-hoc sessions after checking them
// against each other and the store.
func (s *SessionService) CreateSessions(ctx context.Context, params CreateSessionsParams) (result SessionsResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSessions",
		"request_count", len(params.Sessions),
		"allow_overlap", params.AllowOverlap,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create sessions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("warning_count", len(result.Warnings)).InfoContext(ctx, "sessions created")
	}()

	if err = validateSessionInputs(params.Sessions); err != nil {
		return
	}

	now := s.now()
	sessions := make([]Session, len(params.Sessions))
	for i, input := range params.Sessions {
		sessions[i] = Session{
			ID:        s.idGenerator(),
			Title:     strings.TrimSpace(input.Title),
			Start:     input.Start,
			End:       input.End,
			Resources: normalizeResources(input.Resources),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	warnings, err := s.admit(ctx, sessions, params.AllowOverlap, nil)
	if err != nil {
		return
	}

	if err = s.store.CreateSessions(ctx, toPersistenceSessions(sessions)); err != nil {
		err = mapSessionRepoError(err)
		return
	}

	result = SessionsResult{Sessions: sessions, Warnings: warnings}
	return
}

// UpdateSession replaces the time and resources of one session. The session
// itself is excluded from the store check.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (result SessionResult, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSession", "session_id", params.SessionID, "allow_overlap", params.AllowOverlap)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("warning_count", len(result.Warnings)).InfoContext(ctx, "session updated")
	}()

	existing, err := s.store.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}

	if vErr := validateSessionInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := fromPersistenceSession(existing)
	updated.Title = strings.TrimSpace(params.Input.Title)
	updated.Start = params.Input.Start
	updated.End = params.Input.End
	updated.Resources = normalizeResources(params.Input.Resources)
	updated.UpdatedAt = s.now()

	warnings, err := s.admit(ctx, []Session{updated}, params.AllowOverlap, scheduler.NewIDSet(scheduler.ID(updated.ID)))
	if err != nil {
		return
	}

	if err = s.store.UpdateSession(ctx, toPersistenceSession(updated)); err != nil {
		err = mapSessionRepoError(err)
		return
	}

	result = SessionResult{Session: updated, Warnings: warnings}
	return
}

// BulkUpdateSessions applies each update independently, in order. A failed
// item is recorded and processing continues with the next one.
func (s *SessionService) BulkUpdateSessions(ctx context.Context, params BulkUpdateParams) (BulkUpdateResult, error) {
	if s == nil || s.store == nil {
		return BulkUpdateResult{}, fmt.Errorf("session repository not configured")
	}
	if len(params.Updates) == 0 {
		vErr := &ValidationError{}
		vErr.add("updates", "at least one update is required")
		return BulkUpdateResult{}, vErr
	}

	result := BulkUpdateResult{Items: make([]BulkUpdateItem, len(params.Updates))}
	for i, update := range params.Updates {
		item := BulkUpdateItem{SessionID: update.SessionID}
		updated, err := s.UpdateSession(ctx, update)
		if err != nil {
			item.Err = err
			result.Failed++
		} else {
			item.Session = &updated.Session
			item.Warnings = updated.Warnings
			result.Successful++
		}
		result.Items[i] = item
	}

	s.loggerWith(ctx, "BulkUpdateSessions",
		"successful", result.Successful,
		"failed", result.Failed,
	).InfoContext(ctx, "bulk update processed")
	return result, nil
}

// GetSession returns one session.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapSessionRepoError(err)
	}
	return fromPersistenceSession(session), nil
}

// ListSessions returns sessions matching params ordered by start time.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]Session, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("session repository not configured")
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		vErr := &ValidationError{}
		vErr.add("to", "to must be after from")
		return nil, vErr
	}

	found, err := s.store.ListSessions(ctx, persistence.SessionFilter{
		StartsAfter: params.From,
		EndsBefore:  params.To,
		SeriesID:    strings.TrimSpace(params.SeriesID),
		GroupID:     strings.TrimSpace(params.GroupID),
		RoomID:      strings.TrimSpace(params.RoomID),
		StudentID:   strings.TrimSpace(params.StudentID),
		TeacherID:   strings.TrimSpace(params.TeacherID),
	})
	if err != nil {
		err = mapSessionRepoError(err)
		s.loggerWith(ctx, "ListSessions").ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	sessions := make([]Session, len(found))
	for i, session := range found {
		sessions[i] = fromPersistenceSession(session)
	}
	return sessions, nil
}

// DeleteSession removes one session.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSession", "session_id", sessionID)
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		err = mapSessionRepoError(err)
		logger.ErrorContext(ctx, "failed to delete session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session deleted")
	return nil
}

// CheckConflicts runs the conflict checks for proposed sessions without
// storing anything.
func (s *SessionService) CheckConflicts(ctx context.Context, params CheckConflictsParams) (scheduler.Result, error) {
	if s == nil {
		return scheduler.Result{}, fmt.Errorf("SessionService is nil")
	}
	if err := validateSessionInputs(params.Sessions); err != nil {
		return scheduler.Result{}, err
	}

	bookings := make([]scheduler.Booking, len(params.Sessions))
	for i, input := range params.Sessions {
		bookings[i] = newBooking("", input.Start, input.End, normalizeResources(input.Resources))
	}

	result, err := s.detector.Validate(ctx, bookings, params.AllowOverlap, idSet(normalizeIDs(params.ExcludeIDs)))
	if err != nil {
		err = fmt.Errorf("check conflicts: %w", err)
		s.loggerWith(ctx, "CheckConflicts").ErrorContext(ctx, "conflict check failed", "error", err, "error_kind", ErrorKind(err))
		return scheduler.Result{}, err
	}
	return result, nil
}

// admit runs room checks and conflict detection for sessions about to be
// written. It returns the warnings AllowOverlap let through.
func (s *SessionService) admit(ctx context.Context, sessions []Session, allowOverlap bool, exclude scheduler.IDSet) ([]string, error) {
	if err := s.checkRooms(ctx, sessions); err != nil {
		return nil, err
	}

	bookings := make([]scheduler.Booking, len(sessions))
	for i, session := range sessions {
		bookings[i] = sessionBooking(session)
	}

	result, err := s.detector.Validate(ctx, bookings, allowOverlap, exclude)
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if result.HasConflict {
		return nil, &ConflictError{Conflicts: result.Conflicts}
	}
	return result.Warnings, nil
}

// checkRooms verifies that referenced rooms exist and can seat the listed
// students. Each room is loaded once per call.
func (s *SessionService) checkRooms(ctx context.Context, sessions []Session) error {
	if s.rooms == nil {
		return nil
	}

	vErr := &ValidationError{}
	loaded := make(map[string]*persistence.Room)
	for i, session := range sessions {
		if session.Resources.RoomID == nil {
			continue
		}
		roomID := *session.Resources.RoomID
		prefix := ""
		if len(sessions) > 1 {
			prefix = fmt.Sprintf("sessions[%d].", i)
		}

		room, seen := loaded[roomID]
		if !seen {
			found, err := s.rooms.GetRoom(ctx, roomID)
			switch {
			case errors.Is(err, persistence.ErrNotFound):
				room = nil
			case err != nil:
				return fmt.Errorf("load room %s: %w", roomID, err)
			default:
				room = &found
			}
			loaded[roomID] = room
		}

		if room == nil {
			vErr.add(prefix+"room_id", fmt.Sprintf("room %s does not exist", roomID))
			continue
		}
		if students := len(session.Resources.StudentIDs); students > room.Capacity {
			vErr.add(prefix+"student_ids", fmt.Sprintf("%d students exceed the capacity of room %s (%d)", students, roomID, room.Capacity))
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

type seriesDraft struct {
	series   Series
	sessions []Session
	weekday  string
	duration string
}

func (d seriesDraft) record() persistence.Series {
	return toPersistenceSeries(d.series, d.weekday, d.duration)
}

// buildSeries validates the rule and expands it into sessions.
func (s *SessionService) buildSeries(seriesID, title string, input RuleInput, resources Resources, createdAt, updatedAt time.Time) (seriesDraft, error) {
	rule, vErr := parseRule(input, seriesID)
	if vErr.HasErrors() {
		return seriesDraft{}, vErr
	}
	if outcome := recurrence.Validate(rule); !outcome.Valid {
		vErr.add("rule", outcome.Message)
		return seriesDraft{}, vErr
	}

	title = strings.TrimSpace(title)
	resources = normalizeResources(resources)
	weekday := strings.ToLower(rule.Weekday.String())

	series := Series{
		ID:    seriesID,
		Title: title,
		Rule: RuleInput{
			Weekday:        weekday,
			RangeStart:     rule.RangeStart,
			RangeEnd:       rule.RangeEnd,
			FrequencyWeeks: rule.FrequencyWeeks,
			ClockTime:      rule.ClockTime,
			DurationHours:  rule.DurationHours.String(),
		},
		Resources: resources,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	occurrences := recurrence.Generate(rule)
	sessions := make([]Session, len(occurrences))
	for i, occ := range occurrences {
		id := seriesID
		sessions[i] = Session{
			ID:        s.idGenerator(),
			SeriesID:  &id,
			Sequence:  occ.Sequence,
			Title:     title,
			Start:     occ.Start,
			End:       occ.End,
			Resources: resources,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		}
	}

	return seriesDraft{
		series:   series,
		sessions: sessions,
		weekday:  weekday,
		duration: rule.DurationHours.String(),
	}, nil
}

// parseRule converts caller input into a recurrence.Rule. Only malformed
// input is reported here; feasibility is left to recurrence.Validate.
func parseRule(input RuleInput, sourceID string) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}

	if input.RangeStart.IsZero() {
		vErr.add("range_start", "range_start is required")
	}
	if input.RangeEnd.IsZero() {
		vErr.add("range_end", "range_end is required")
	}
	duration, err := decimal.NewFromString(strings.TrimSpace(input.DurationHours))
	if err != nil {
		vErr.add("duration_hours", "duration_hours must be a decimal number")
	}
	if vErr.HasErrors() {
		return recurrence.Rule{}, vErr
	}

	return recurrence.Rule{
		SourceID:       sourceID,
		Weekday:        recurrence.ParseWeekday(input.Weekday),
		RangeStart:     input.RangeStart,
		RangeEnd:       input.RangeEnd,
		FrequencyWeeks: input.FrequencyWeeks,
		ClockTime:      strings.TrimSpace(input.ClockTime),
		DurationHours:  duration,
	}, vErr
}

func toRuleCheck(outcome recurrence.ValidationOutcome) RuleCheck {
	return RuleCheck{Valid: outcome.Valid, Message: outcome.Message, EstimatedCount: outcome.EstimatedCount}
}

func validateSessionInput(input SessionInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !vErr.HasErrors() && !input.Start.Before(input.End) {
		vErr.add("end", "end must be after start")
	}
	return vErr
}

func validateSessionInputs(inputs []SessionInput) error {
	vErr := &ValidationError{}
	if len(inputs) == 0 {
		vErr.add("sessions", "at least one session is required")
		return vErr
	}
	for i, input := range inputs {
		vErr.merge(fmt.Sprintf("sessions[%d].", i), validateSessionInput(input))
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapSessionRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("room_id", "room does not exist")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("end", "end must be after start")
		return vErr
	}
	return err
}
