package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/session-scheduler/internal/application"
)

const (
	codeBadRequest       = "BAD_REQUEST"
	codeUnauthorized     = "AUTH_REQUIRED"
	codeNotFound         = "NOT_FOUND"
	codeValidationFailed = "VALIDATION_FAILED"
	codeScheduleConflict = "SCHEDULE_CONFLICT"
	codeResourceInUse    = "RESOURCE_IN_USE"
	codeAlreadyExists    = "ALREADY_EXISTS"
	codeInternal         = "INTERNAL_ERROR"
)

var (
	errBadRequestBody = errors.New("無効なリクエスト形式です。")
	errMissingAPIKey  = errors.New("API キーを指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusErrorCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := describeServiceError(err)
	r.writeJSON(ctx, w, status, body)
}

// describeServiceError maps application errors to a status and payload.
func describeServiceError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: localizedStatusMessage(http.StatusInternalServerError)}
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{ErrorCode: codeUnauthorized, Message: "API キーが無効です。"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: "指定されたリソースが見つかりません。"}
	case errors.Is(err, application.ErrInUse):
		return http.StatusConflict, errorResponse{ErrorCode: codeResourceInUse, Message: "セッションが参照しているため削除できません。"}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: codeAlreadyExists, Message: "同じ ID のリソースが既に存在します。"}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: codeValidationFailed,
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		}
	}
	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		return http.StatusConflict, errorResponse{
			ErrorCode: codeScheduleConflict,
			Message:   "スケジュールが競合しています。",
			Conflicts: toConflictDTOs(cErr.Conflicts),
		}
	}

	return http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: localizedStatusMessage(http.StatusInternalServerError)}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusUnprocessableEntity:
		return codeValidationFailed
	default:
		return codeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

// translateValidationMessage localizes the fixed field messages. Rule
// feasibility messages and messages carrying ids pass through unchanged.
func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "教室名は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "start is required":
		return "開始日時は必須です。"
	case "end is required":
		return "終了日時は必須です。"
	case "end must be after start":
		return "終了日時は開始日時より後である必要があります。"
	case "range_start is required":
		return "期間の開始日は必須です。"
	case "range_end is required":
		return "期間の終了日は必須です。"
	case "duration_hours must be a decimal number":
		return "時間数は数値で指定してください。"
	case "at least one session is required":
		return "少なくとも 1 件のセッションを指定してください。"
	case "at least one update is required":
		return "少なくとも 1 件の更新を指定してください。"
	case "room does not exist":
		return "指定された教室は存在しません。"
	case "to must be after from":
		return "終了日時は開始日時より後である必要があります。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}
