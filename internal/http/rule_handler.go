package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/logging"
)

type ruleService interface {
	ValidateRule(ctx context.Context, input application.RuleInput) (application.RuleCheck, error)
	PreviewRule(ctx context.Context, input application.RuleInput, maxCount int) (application.RulePreview, error)
	ExportRuleICS(ctx context.Context, input application.RuleInput, export application.ICSExport, w io.Writer) error
}

// RuleHandler serves rule validation, preview and iCalendar export. Rules
// are never stored by these endpoints.
type RuleHandler struct {
	service   ruleService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewRuleHandler reads date-only range bounds in loc.
func NewRuleHandler(service ruleService, loc *time.Location, logger *slog.Logger) *RuleHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := logging.OrDefault(logger)
	return &RuleHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *RuleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "RuleHandler", operation, attrs...)
}

func (h *RuleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Validate", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode rule", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	input := req.toInput("", h.location, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	check, err := h.service.ValidateRule(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRuleCheckDTO(check))
}

type previewRequest struct {
	ruleRequest
	MaxCount int `json:"max_count"`
}

type occurrenceDTO struct {
	Sequence int    `json:"sequence"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

type previewResponse struct {
	ruleCheckDTO
	Total       int             `json:"total"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

func (h *RuleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Preview", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode preview request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	input := req.toInput("", h.location, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	preview, err := h.service.PreviewRule(r.Context(), input, req.MaxCount)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := previewResponse{
		ruleCheckDTO: toRuleCheckDTO(preview.Check),
		Total:        preview.Total,
		Occurrences:  make([]occurrenceDTO, 0, len(preview.Occurrences)),
	}
	for _, occ := range preview.Occurrences {
		resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
			Sequence: occ.Sequence,
			Start:    occ.Start.Format(time.RFC3339),
			End:      occ.End.Format(time.RFC3339),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type icsRequest struct {
	ruleRequest
	UID      string `json:"uid"`
	Summary  string `json:"summary"`
	Location string `json:"location"`
}

func (h *RuleHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req icsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "ExportICS", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode ics request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	errs := fieldErrors{}
	input := req.toInput("", h.location, errs)
	if err := errs.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	err := h.service.ExportRuleICS(r.Context(), input, application.ICSExport{
		UID:      req.UID,
		Summary:  req.Summary,
		Location: req.Location,
	}, &buf)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log(r.Context(), "ExportICS").ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}
