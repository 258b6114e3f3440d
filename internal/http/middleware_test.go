package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/application"
)

type verifierFunc func(ctx context.Context, key string) error

func (f verifierFunc) Verify(ctx context.Context, key string) error { return f(ctx, key) }

func TestRequireAPIKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	boom := errors.New("hash unreadable")
	verifier := verifierFunc(func(_ context.Context, key string) error {
		switch key {
		case "good":
			return nil
		case "broken":
			return boom
		default:
			return application.ErrUnauthorized
		}
	})
	handler := RequireAPIKey(verifier, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "missing key", status: http.StatusUnauthorized},
		{name: "wrong key", key: "bad", status: http.StatusUnauthorized},
		{name: "verifier failure", key: "broken", status: http.StatusInternalServerError},
		{name: "valid key", key: "good", status: http.StatusTeapot},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
			if tc.key != "" {
				req.Header.Set(APIKeyHeader, tc.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireAPIKey_WithArgon2Verifier(t *testing.T) {
	encoded, err := application.HashAPIKey("s3cret", application.Argon2idParams{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	})
	require.NoError(t, err)
	verifier, err := application.NewAPIKeyVerifier(encoded)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Rooms:   NewRoomHandler(nil, nil),
		APIKeys: verifier,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health check needs no key")
}

func TestRequestLogger_AttachesRequestLogger(t *testing.T) {
	var seen *slog.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	handler := middleware.RequestID(RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(next))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotNil(t, seen)
}

func TestRecovererReturns500(t *testing.T) {
	router := NewRouter(RouterConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Middleware: []func(http.Handler) http.Handler{
			func(http.Handler) http.Handler {
				return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
			},
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
