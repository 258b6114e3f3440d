package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	Rules    *RuleHandler
	Series   *SeriesHandler
	Sessions *SessionHandler
	Rooms    *RoomHandler
	// APIKeys guards every /api route. Nil leaves the API open.
	APIKeys     KeyVerifier
	CORSOrigins []string
	Logger      *slog.Logger
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", healthz)

	r.Route("/api", func(r chi.Router) {
		if cfg.APIKeys != nil {
			r.Use(RequireAPIKey(cfg.APIKeys, cfg.Logger))
		}

		if cfg.Rules != nil {
			r.Route("/rules", func(r chi.Router) {
				r.Post("/validate", cfg.Rules.Validate)
				r.Post("/preview", cfg.Rules.Preview)
				r.Post("/ics", cfg.Rules.ExportICS)
			})
		}

		if cfg.Series != nil {
			r.Route("/series", func(r chi.Router) {
				r.Post("/", cfg.Series.Create)
				r.Get("/{id}", cfg.Series.Get)
				r.Put("/{id}", cfg.Series.Update)
				r.Delete("/{id}", cfg.Series.Delete)
			})
		}

		if cfg.Sessions != nil {
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", cfg.Sessions.List)
				r.Post("/", cfg.Sessions.Create)
				r.Post("/bulk-update", cfg.Sessions.BulkUpdate)
				r.Get("/{id}", cfg.Sessions.Get)
				r.Put("/{id}", cfg.Sessions.Update)
				r.Delete("/{id}", cfg.Sessions.Delete)
			})
			r.Post("/conflicts/check", cfg.Sessions.CheckConflicts)
		}

		if cfg.Rooms != nil {
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", cfg.Rooms.List)
				r.Post("/", cfg.Rooms.Create)
				r.Get("/{id}", cfg.Rooms.Get)
				r.Get("/{id}/sessions", cfg.Rooms.Sessions)
				r.Put("/{id}", cfg.Rooms.Update)
				r.Delete("/{id}", cfg.Rooms.Delete)
			})
		}
	})

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
