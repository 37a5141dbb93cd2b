package server

import (
	"net/http"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/api/handlers"
	"github.com/LogiStackDev/access-onboard-flow/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	SessionValidator middleware.SessionValidator
	CPVHandler       *handlers.CPVHandler
	ProfileHandler   *handlers.ProfileHandler
	SessionHandler   *handlers.SessionHandler
	Metrics          prometheus.Gatherer
	Logger           *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.SessionValidator))

		r.Get("/me", cfg.ProfileHandler.Me)
		r.Post("/auth/logout", cfg.SessionHandler.Logout)

		r.Route("/cpv", func(r chi.Router) {
			r.Get("/", cfg.CPVHandler.Resolve)
			r.Get("/search", cfg.CPVHandler.Search)
			r.Get("/searches", cfg.CPVHandler.History)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", cfg.ProfileHandler.Get)
			r.Put("/", cfg.ProfileHandler.Save)

			r.Route("/cpv-codes", func(r chi.Router) {
				r.Get("/", cfg.CPVHandler.ListSelection)
				r.Post("/", cfg.CPVHandler.AddCode)
				r.Get("/suggestions", cfg.CPVHandler.Suggestions)
				r.Delete("/{code}", cfg.CPVHandler.RemoveCode)
			})
		})
	})

	return r
}
