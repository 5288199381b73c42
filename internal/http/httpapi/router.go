package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sungminna/marketer/internal/http/handlers"
	"github.com/sungminna/marketer/internal/middleware"
)

// Options carries the cross-cutting knobs the router needs beyond the handlers.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.CreateJob)
			r.Get("/", app.ListJobs)
			r.Post("/estimate", app.EstimateCost)
			r.Get("/{job_id}", app.GetJob)
		})

		r.Route("/v1/batches", func(r chi.Router) {
			r.Post("/", app.CreateBatch)
			r.Get("/", app.ListBatches)
			r.Get("/{batch_id}", app.GetBatch)
			r.Get("/{batch_id}/jobs", app.BatchJobs)
			r.Post("/{batch_id}/cancel", app.CancelBatch)
		})

		r.Route("/v1/webhooks", func(r chi.Router) {
			r.Post("/", app.CreateWebhook)
			r.Get("/", app.ListWebhooks)
			r.Get("/deliveries", app.ListWebhookDeliveries)
			r.Get("/{webhook_id}", app.GetWebhook)
			r.Patch("/{webhook_id}", app.UpdateWebhook)
			r.Delete("/{webhook_id}", app.DeleteWebhook)
			r.Post("/{webhook_id}/test", app.TestWebhook)
		})

		r.Route("/v1/quota", func(r chi.Router) {
			r.Get("/", app.GetQuota)
			r.Put("/plan", app.UpdatePlan)
		})

		r.Route("/v1/usage", func(r chi.Router) {
			r.Get("/", app.ListUsage)
			r.Get("/summary", app.UsageSummary)
		})

		r.Route("/v1/credentials", func(r chi.Router) {
			r.Get("/", app.ListCredentials)
			r.Put("/{provider}", app.PutCredential)
			r.Delete("/{provider}", app.DeleteCredential)
		})
	})

	return r
}
