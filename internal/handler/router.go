package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediavault/internal/logger"
)

// NewRouter собирает HTTP-маршруты сервиса
func NewRouter(log *logger.Logger, pending *PendingHandler, assets *AssetHandler, metricsPath string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", pendingTokenHeader},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition", pendingTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("Incoming request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pending", func(r chi.Router) {
			r.Use(WithToken)
			r.Post("/", pending.Store)
			r.Get("/{id}", pending.Get)
			r.Get("/{id}/content", pending.Content)
			r.Delete("/{id}", pending.Delete)
			r.Post("/{id}/promote", pending.Promote)
		})

		r.Route("/assets/{id}", func(r chi.Router) {
			r.Get("/", assets.Download)
			r.Delete("/", assets.Delete)
			r.Get("/variants/{name}", assets.DownloadVariant)
		})
	})

	return r
}
