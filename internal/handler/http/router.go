package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/health"
	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName string
	// AdminRateLimit is the number of admin requests allowed per IP per minute.
	AdminRateLimit    int
	AdminCORSOrigins  []string
	PprofEnabled      bool
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with the reindex, health and metrics routes.
// Reindex routes carry no request timeout; runs are bounded by the pipeline.
func NewRouter(
	svc Reindexer,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "catalog-sync"
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/health/live", healthHandler.LivenessHandler())
		r.Get("/health/ready", healthHandler.ReadinessHandler())
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			promhttp.Handler().ServeHTTP(w, r)
		})
	})

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	// Set before the sub-routers are mounted so they inherit it.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFound("route", r.URL.Path), logger)
	})

	h := NewReindexHandler(svc, logger)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AdminCORSOrigins)))
		if cfg.AdminRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.AdminRateLimit, time.Minute))
		}
		r.Post("/reindex", h.AdminReindex)
	})

	r.Get("/store/reindex-products", h.StoreReindex)

	return r
}
