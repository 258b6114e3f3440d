package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/logging"
)

var errInvalidRoomID = errors.New("無効な教室 ID です。")

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	ListRooms(ctx context.Context) ([]application.Room, error)
}

type sessionLister interface {
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error)
}

// RoomHandler serves the classroom catalog and, when sessions are wired,
// each room's occupancy.
type RoomHandler struct {
	service   roomService
	sessions  sessionLister
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := logging.OrDefault(logger)
	return &RoomHandler{service: service, location: time.UTC, responder: newResponder(base), logger: base}
}

// WithSessions enables GET /rooms/{id}/sessions. Date-only bounds are read
// in loc.
func (h *RoomHandler) WithSessions(sessions sessionLister, loc *time.Location) *RoomHandler {
	h.sessions = sessions
	if loc != nil {
		h.location = loc
	}
	return h
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) unavailable(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return true
	}
	return false
}

// roomID reads the {id} path parameter, answering 400 when it is blank.
func (h *RoomHandler) roomID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	roomID := strings.TrimSpace(chi.URLParam(r, "id"))
	if roomID == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "missing room id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return "", false
	}
	return roomID, true
}

func (h *RoomHandler) decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (roomRequest, bool) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode room request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return roomRequest{}, false
	}
	return req, true
}

func (h *RoomHandler) fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(r.Context(), msg, "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	logger := h.log(r.Context(), "Create")
	req, ok := h.decode(w, r, logger)
	if !ok {
		return
	}

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{Input: req.toInput()})
	if err != nil {
		h.fail(w, r, logger, "room creation failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room created", "room_id", room.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Update")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Update", "room_id", roomID)
	req, ok := h.decode(w, r, logger)
	if !ok {
		return
	}

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{RoomID: roomID, Input: req.toInput()})
	if err != nil {
		h.fail(w, r, logger, "room update failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Get")
	if !ok {
		return
	}

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

// Sessions lists the bookings that occupy a room, optionally bounded by the
// from and to query parameters.
func (h *RoomHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	if h.sessions == nil {
		http.NotFound(w, r)
		return
	}
	roomID, ok := h.roomID(w, r, "Sessions")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Sessions", "room_id", roomID)

	query := r.URL.Query()
	query.Del("room_id")
	params, err := parseListSessionsQuery(query, h.location)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	params.RoomID = roomID

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.fail(w, r, logger, "room lookup failed", err)
		return
	}
	sessions, err := h.sessions.ListSessions(r.Context(), params)
	if err != nil {
		h.fail(w, r, logger, "room sessions failed", err)
		return
	}

	logger.DebugContext(r.Context(), "room sessions listed", "result_count", len(sessions))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomSessionsResponse{
		Room:     toRoomDTO(room),
		Sessions: toSessionDTOs(sessions),
	})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Delete")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Delete", "room_id", roomID)

	if err := h.service.DeleteRoom(r.Context(), roomID); err != nil {
		h.fail(w, r, logger, "room delete failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	logger := h.log(r.Context(), "List")

	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		h.fail(w, r, logger, "room list failed", err)
		return
	}

	logger.DebugContext(r.Context(), "rooms listed", "result_count", len(rooms))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

type roomRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:     strings.TrimSpace(r.Name),
		Location: strings.TrimSpace(r.Location),
		Capacity: r.Capacity,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomSessionsResponse struct {
	Room     roomDTO      `json:"room"`
	Sessions []sessionDTO `json:"sessions"`
}

type roomDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	Capacity  int    `json:"capacity"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:        room.ID,
		Name:      room.Name,
		Location:  room.Location,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
