package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/pushsched/internal/api/handler"
	apimw "github.com/notifyhub/pushsched/internal/api/middleware"
	"github.com/notifyhub/pushsched/internal/discovery"
	"github.com/notifyhub/pushsched/internal/jobqueue"
	"github.com/notifyhub/pushsched/internal/repository"
	"github.com/notifyhub/pushsched/internal/schedule"
	"github.com/notifyhub/pushsched/internal/tzcatalog"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	scheduleSvc *schedule.Service,
	historyRepo repository.HistoryRepository,
	logRepo repository.LogRepository,
	disc *discovery.Discovery,
	q *jobqueue.Queue,
	catalog *tzcatalog.Catalog,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))
	// Admin dashboard runs as a separate browser-served origin; only GET
	// routes are exposed cross-origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID", "X-User-ID"},
		MaxAge:         300,
	}))

	// --- handler instances ---
	sh := handler.NewScheduleHandler(scheduleSvc, logger)
	hh2 := handler.NewHistoryHandler(historyRepo)
	nh := handler.NewNotificationHandler(logRepo)
	dh := handler.NewDeviceHandler(disc, logger)
	mh := handler.NewMetricsHandler(q)
	th := handler.NewTimezoneHandler(catalog)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Schedules — chi matches on the route tree, not registration order,
		// so /status and the plain {id} read do not shadow each other.
		r.Post("/schedules", sh.Create)
		r.Get("/schedules", sh.List)
		r.Get("/schedules/{id}", sh.GetByID)
		r.Post("/schedules/{id}/status", sh.UpdateStatus)

		// Admin dashboard
		r.Get("/history", hh2.List)
		r.Get("/history/stats", hh2.Stats)

		// User-facing feed
		r.Get("/notifications", nh.List)

		// Device registration hook (triggers timezone discovery)
		r.Post("/fcm-token", dh.RegisterToken)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)

		// Timezone picker for the admin dashboard
		r.Get("/timezones", th.List)
	})

	return r
}
