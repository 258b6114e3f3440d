package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/session-scheduler/internal/application"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

type KeyVerifier interface {
	Verify(ctx context.Context, key string) error
}

// RequireAPIKey rejects requests whose X-API-Key does not verify.
func RequireAPIKey(verifier KeyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAPIKey)
				return
			}

			if err := verifier.Verify(r.Context(), key); err != nil {
				switch {
				case errors.Is(err, application.ErrUnauthorized):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: codeUnauthorized,
						Message:   "API キーが無効です。",
					})
				default:
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "api key verification failed", "error", err)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
						ErrorCode: codeInternal,
						Message:   "API キーの検証中にエラーが発生しました。",
					})
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a request scoped logger to the context and logs
// each request's status and duration. It reads the id set by
// middleware.RequestID.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(ctx, "request completed",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
