package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/medallion/internal/adapter/api/handler"
	"github.com/V4T54L/medallion/internal/adapter/api/middleware"
)

// MaxNotificationSize caps the body accepted by POST /notify.
const MaxNotificationSize = 1 << 20

// RouterDeps are the collaborators wired into the trigger service router.
type RouterDeps struct {
	Logger   *slog.Logger
	APIKeys  []string
	Notifier handler.Notifier
	// Admin is optional; the /admin routes are mounted only when set.
	Admin    handler.QueueAdmin
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the HTTP router for the trigger service.
// Routes other than /health and /metrics require an API key.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Timeout(60 * time.Second))

	adminHandler := handler.NewAdminHandler(deps.Admin, deps.Logger)
	r.Get("/health", adminHandler.HealthCheck)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := middleware.Auth(deps.APIKeys, deps.Logger)

	r.With(auth).Method(http.MethodPost, "/notify",
		handler.NewNotifyHandler(deps.Notifier, deps.Logger, MaxNotificationSize))

	if deps.Admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Get("/queue", adminHandler.GetQueueStatus)
			r.Get("/queue/groups", adminHandler.GetGroupInfo)
			r.Get("/queue/pending", adminHandler.GetPending)
			r.Get("/dead-letters", adminHandler.GetDeadLetters)
			r.Post("/dead-letters/trim", adminHandler.TrimDeadLetters)
			r.Get("/runs", adminHandler.GetRuns)
		})
	}

	return r
}
