package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anhpnguyen/edupay-backend/api/controllers"
	"github.com/anhpnguyen/edupay-backend/api/middleware"
	"github.com/anhpnguyen/edupay-backend/internal/invoices"
	"github.com/anhpnguyen/edupay-backend/internal/payments"
	"github.com/anhpnguyen/edupay-backend/internal/printing"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db"
	"github.com/anhpnguyen/edupay-backend/pkg/enums"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
	"github.com/anhpnguyen/edupay-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB      db.Pinger
	Redis   *redis.Client
	Metrics prometheus.Gatherer

	PaymentService payments.Service
	Gateway        payments.Gateway
	InvoiceService invoices.Service
	Registry       *printing.Registry
	Dispatcher     *printing.Dispatcher
}

// NewRouter assembles the HTTP surface.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	var cache redis.Pinger
	var idemStore redis.IdempotencyStore
	var rlStore middleware.RateLimiterStore
	if d.Redis != nil {
		cache = d.Redis
		idemStore = d.Redis
		rlStore = d.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, cache, logg))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	webhookPolicy := middleware.WebhookRateLimitPolicy{
		Window: cfg.WebhookLimit.Window,
		Limit:  cfg.WebhookLimit.Limit,
	}

	staffOnly := middleware.RequireRole(logg, string(enums.UserRoleAdmin), string(enums.UserRoleAccountant))
	adminOnly := middleware.RequireRole(logg, string(enums.UserRoleAdmin))

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.With(middleware.WebhookRateLimit(webhookPolicy, rlStore, logg)).
			Post("/webhook", controllers.PaymentWebhook(d.PaymentService, d.Gateway, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Post("/qr", controllers.CreateQRPayment(d.PaymentService, logg))
			r.With(staffOnly).Post("/{id}/confirm", controllers.ManualConfirmPayment(d.PaymentService, logg))
			r.With(staffOnly).Post("/{id}/refund", controllers.ManualRefundPayment(d.PaymentService, logg))
		})
	})

	r.Route("/api/v1/invoices", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/lookup/{code}", controllers.LookupInvoice(d.InvoiceService, logg))
		r.Get("/{id}/pdf", controllers.DownloadInvoiceArtifact(d.InvoiceService, "pdf", logg))
		r.Get("/{id}/xml", controllers.DownloadInvoiceArtifact(d.InvoiceService, "xml", logg))

		r.Group(func(r chi.Router) {
			r.Use(staffOnly)
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Post("/orders/{orderId}", controllers.IssueInvoice(d.InvoiceService, logg))
			r.Post("/{id}/rerender", controllers.RerenderInvoice(d.InvoiceService, logg))
			r.Post("/{id}/resend", controllers.ResendInvoice(d.InvoiceService, logg))
		})
	})

	r.Route("/api/v1/printing", func(r chi.Router) {
		r.With(middleware.AgentAuth(cfg.JWT, logg)).
			Post("/jobs/{id}/complete", controllers.CompletePrintJob(d.Dispatcher, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(staffOnly).Get("/printers", controllers.ListPrinters(d.Registry, logg))
			r.With(adminOnly).Get("/agents", controllers.ListPrintAgents(d.Registry, logg))
			r.With(staffOnly).Get("/jobs", controllers.ListPrintJobs(d.Dispatcher, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Idempotency(idemStore, logg))

				r.With(adminOnly).Post("/printers", controllers.RegisterPrinter(d.Registry, logg))
				r.With(adminOnly).Post("/agents", controllers.RegisterPrintAgent(d.Registry, logg))
				r.With(staffOnly).Post("/jobs", controllers.CreatePrintJob(d.Dispatcher, logg))
				r.With(staffOnly).Post("/jobs/{id}/retry", controllers.RetryPrintJob(d.Dispatcher, logg))
			})
		})
	})

	return r
}
