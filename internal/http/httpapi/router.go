package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// RouterOptions carries the middleware configuration for the API router.
type RouterOptions struct {
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Post("/augment", app.VideosAugment)
		r.Get("/tasks/{task_id}", app.VideoTaskStatus)
	})

	r.Route("/v1/train", func(r chi.Router) {
		r.Post("/", app.TrainDispatch)
		r.Get("/status", app.TrainStatus)
		r.Get("/{job_id}/logs", app.TrainLogs)
	})

	return r
}
