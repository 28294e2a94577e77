package httpserver

import (
	"net/http"
	"time"

	"todo-sync-go/internal/config"
	"todo-sync-go/internal/transport/httpserver/handler"
	authmw "todo-sync-go/internal/transport/httpserver/middleware"
	"todo-sync-go/pkg/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

func NewRouter(cfg config.Config, handlers *handler.Handlers, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(authmw.NewCORS(cfg.HTTP.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Common.Health)

		auth := authmw.NewSupabaseAuth(cfg.Supabase, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			// Streams are long-lived and stay outside the request timeout.
			r.Get("/stream/*", handlers.Collections.Stream)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(requestTimeout))

				r.Get("/auth/me", handlers.Common.AuthMe)

				r.Get("/db/*", handlers.Collections.GetSnapshot)
				r.Post("/db/*", handlers.Collections.CreateRecord)
				r.Patch("/db/*", handlers.Collections.UpdateRecord)
				r.Delete("/db/*", handlers.Collections.DeleteRecord)
			})
		})
	})

	return r
}
