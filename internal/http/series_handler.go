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

var errInvalidSeriesID = errors.New("無効なシリーズ ID です。")

type seriesService interface {
	CreateSeries(ctx context.Context, params application.CreateSeriesParams) (application.SeriesResult, error)
	UpdateSeries(ctx context.Context, params application.UpdateSeriesParams) (application.SeriesResult, error)
	GetSeries(ctx context.Context, seriesID string) (application.Series, error)
	DeleteSeries(ctx context.Context, seriesID string) error
}

type SeriesHandler struct {
	service   seriesService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewSeriesHandler(service seriesService, loc *time.Location, logger *slog.Logger) *SeriesHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := logging.OrDefault(logger)
	return &SeriesHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *SeriesHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "SeriesHandler", operation, attrs...)
}

type seriesRequest struct {
	Title string      `json:"title"`
	Rule  ruleRequest `json:"rule"`
	resourcesDTO
	AllowOverlap bool `json:"allow_overlap"`
}

type seriesResponse struct {
	Series   seriesDTO    `json:"series"`
	Sessions []sessionDTO `json:"sessions,omitempty"`
	Warnings []string     `json:"warnings"`
}

func (h *SeriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode series request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	rule := req.Rule.toInput("rule.", h.location, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "allow_overlap", req.AllowOverlap)
	result, err := h.service.CreateSeries(r.Context(), application.CreateSeriesParams{
		Title:        req.Title,
		Rule:         rule,
		Resources:    req.resourcesDTO.toResources(),
		AllowOverlap: req.AllowOverlap,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "series creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("series_id", result.Series.ID).InfoContext(r.Context(), "series created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSeriesResponse(result))
}

func (h *SeriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID := strings.TrimSpace(chi.URLParam(r, "id"))
	if seriesID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "series_id", seriesID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode series update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	rule := req.Rule.toInput("rule.", h.location, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "series_id", seriesID, "allow_overlap", req.AllowOverlap)
	result, err := h.service.UpdateSeries(r.Context(), application.UpdateSeriesParams{
		SeriesID:     seriesID,
		Title:        req.Title,
		Rule:         rule,
		Resources:    req.resourcesDTO.toResources(),
		AllowOverlap: req.AllowOverlap,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "series update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "series updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSeriesResponse(result))
}

func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID := strings.TrimSpace(chi.URLParam(r, "id"))
	if seriesID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	series, err := h.service.GetSeries(r.Context(), seriesID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, seriesResponse{Series: toSeriesDTO(series), Warnings: []string{}})
}

func (h *SeriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID := strings.TrimSpace(chi.URLParam(r, "id"))
	if seriesID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	logger := h.log(r.Context(), "Delete", "series_id", seriesID)
	if err := h.service.DeleteSeries(r.Context(), seriesID); err != nil {
		logger.ErrorContext(r.Context(), "series delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "series deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func toSeriesResponse(result application.SeriesResult) seriesResponse {
	return seriesResponse{
		Series:   toSeriesDTO(result.Series),
		Sessions: toSessionDTOs(result.Sessions),
		Warnings: nonNil(result.Warnings),
	}
}
