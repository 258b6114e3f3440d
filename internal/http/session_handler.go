package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/scheduler"
)

var errInvalidSessionID = errors.New("無効なセッション ID です。")

type sessionService interface {
	CreateSessions(ctx context.Context, params application.CreateSessionsParams) (application.SessionsResult, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (application.SessionResult, error)
	BulkUpdateSessions(ctx context.Context, params application.BulkUpdateParams) (application.BulkUpdateResult, error)
	GetSession(ctx context.Context, sessionID string) (application.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CheckConflicts(ctx context.Context, params application.CheckConflictsParams) (scheduler.Result, error)
}

type SessionHandler struct {
	service   sessionService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewSessionHandler reads date-only list bounds in loc.
func NewSessionHandler(service sessionService, loc *time.Location, logger *slog.Logger) *SessionHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := logging.OrDefault(logger)
	return &SessionHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "SessionHandler", operation, attrs...)
}

type createSessionsRequest struct {
	Sessions     []sessionRequest `json:"sessions"`
	AllowOverlap bool             `json:"allow_overlap"`
}

type sessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
	Warnings []string     `json:"warnings"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode sessions", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	inputs := toSessionInputs(req.Sessions, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "request_count", len(inputs), "allow_overlap", req.AllowOverlap)
	result, err := h.service.CreateSessions(r.Context(), application.CreateSessionsParams{
		Sessions:     inputs,
		AllowOverlap: req.AllowOverlap,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "sessions created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionsResponse{
		Sessions: toSessionDTOs(result.Sessions),
		Warnings: nonNil(result.Warnings),
	})
}

type updateSessionRequest struct {
	sessionRequest
	AllowOverlap bool `json:"allow_overlap"`
}

type sessionResponse struct {
	Session  sessionDTO `json:"session"`
	Warnings []string   `json:"warnings"`
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode session update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	input := req.toInput("", errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "session_id", sessionID)
	result, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		SessionID:    sessionID,
		Input:        input,
		AllowOverlap: req.AllowOverlap,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Session:  toSessionDTO(result.Session),
		Warnings: nonNil(result.Warnings),
	})
}

type bulkUpdateRequest struct {
	Updates []bulkUpdateEntry `json:"updates"`
}

type bulkUpdateEntry struct {
	ID string `json:"id"`
	updateSessionRequest
}

type bulkUpdateResponse struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Results    []bulkItemResult `json:"results"`
}

type bulkItemResult struct {
	ID       string         `json:"id"`
	Status   int            `json:"status"`
	Session  *sessionDTO    `json:"session,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    *errorResponse `json:"error,omitempty"`
}

// BulkUpdate always answers 200 once the request parses; per-item failures
// are reported inside the results.
func (h *SessionHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "BulkUpdate", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode bulk update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	// Entries that fail to parse are reported in place; the rest still run.
	resp := bulkUpdateResponse{Results: make([]bulkItemResult, len(req.Updates))}
	updates := make([]application.UpdateSessionParams, 0, len(req.Updates))
	positions := make([]int, 0, len(req.Updates))
	for i, entry := range req.Updates {
		id := strings.TrimSpace(entry.ID)
		errs := fieldErrors{}
		input := entry.toInput("", errs)
		if err := errs.err(); err != nil {
			status, body := describeServiceError(err)
			resp.Results[i] = bulkItemResult{ID: id, Status: status, Error: &body}
			resp.Failed++
			continue
		}
		updates = append(updates, application.UpdateSessionParams{
			SessionID:    id,
			Input:        input,
			AllowOverlap: entry.AllowOverlap,
		})
		positions = append(positions, i)
	}

	if len(updates) > 0 || len(req.Updates) == 0 {
		result, err := h.service.BulkUpdateSessions(r.Context(), application.BulkUpdateParams{Updates: updates})
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		resp.Successful += result.Successful
		resp.Failed += result.Failed
		for j, item := range result.Items {
			resp.Results[positions[j]] = toBulkItemResult(item)
		}
	}

	h.log(r.Context(), "BulkUpdate", "successful", resp.Successful, "failed", resp.Failed).
		InfoContext(r.Context(), "bulk update processed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func toBulkItemResult(item application.BulkUpdateItem) bulkItemResult {
	entry := bulkItemResult{ID: item.SessionID, Status: http.StatusOK}
	if item.Err != nil {
		status, body := describeServiceError(item.Err)
		entry.Status = status
		entry.Error = &body
	} else if item.Session != nil {
		dto := toSessionDTO(*item.Session)
		entry.Session = &dto
		entry.Warnings = item.Warnings
	}
	return entry
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session), Warnings: []string{}})
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := parseListSessionsQuery(r.URL.Query(), h.location)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "List").With("result_count", len(sessions)).InfoContext(r.Context(), "sessions listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "id"))
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	logger := h.log(r.Context(), "Delete", "session_id", sessionID)
	if err := h.service.DeleteSession(r.Context(), sessionID); err != nil {
		logger.ErrorContext(r.Context(), "session delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type checkConflictsRequest struct {
	Sessions     []sessionRequest `json:"sessions"`
	ExcludeIDs   []string         `json:"exclude_ids"`
	AllowOverlap bool             `json:"allow_overlap"`
}

type checkConflictsResponse struct {
	HasConflict bool          `json:"has_conflict"`
	Conflicts   []conflictDTO `json:"conflicts"`
	Warnings    []string      `json:"warnings"`
}

func (h *SessionHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req checkConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CheckConflicts", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode conflict check", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	inputs := toSessionInputs(req.Sessions, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.service.CheckConflicts(r.Context(), application.CheckConflictsParams{
		Sessions:     inputs,
		ExcludeIDs:   req.ExcludeIDs,
		AllowOverlap: req.AllowOverlap,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, checkConflictsResponse{
		HasConflict: result.HasConflict,
		Conflicts:   toConflictDTOs(result.Conflicts),
		Warnings:    nonNil(result.Warnings),
	})
}

func parseListSessionsQuery(values url.Values, loc *time.Location) (application.ListSessionsParams, error) {
	errs := fieldErrors{}
	params := application.ListSessionsParams{
		SeriesID:  values.Get("series_id"),
		GroupID:   values.Get("group_id"),
		RoomID:    values.Get("room_id"),
		StudentID: values.Get("student_id"),
		TeacherID: values.Get("teacher_id"),
	}

	for _, bound := range []struct {
		name   string
		target **time.Time
	}{
		{"from", &params.From},
		{"to", &params.To},
	} {
		t, err := parseDateOrTime(values.Get(bound.name), loc)
		if err != nil {
			errs.add(bound.name, err)
			continue
		}
		if !t.IsZero() {
			*bound.target = &t
		}
	}

	if err := errs.err(); err != nil {
		return application.ListSessionsParams{}, err
	}
	return params, nil
}
