package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	deletionhandler "mastercom/internal/deletion/handler"
	"mastercom/internal/platform/config"
	platformmetrics "mastercom/internal/platform/metrics"
	ratelimitmw "mastercom/internal/ratelimit/middleware"
	recordhandler "mastercom/internal/records/handler"
	"mastercom/pkg/platform/httputil"
	adminmw "mastercom/pkg/platform/middleware/admin"
	authmw "mastercom/pkg/platform/middleware/auth"
	"mastercom/pkg/platform/middleware/metadata"
	"mastercom/pkg/platform/middleware/request"
	"mastercom/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

type routerDeps struct {
	cfg       config.Config
	log       *slog.Logger
	registry  *prometheus.Registry
	metrics   *platformmetrics.Metrics
	validator authmw.JWTValidator
	health    func(ctx context.Context) error
	limiter   *ratelimitmw.Middleware
	records   *recordhandler.Handler
	deletions *deletionhandler.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.log))
	r.Use(request.Logger(d.log))
	r.Use(request.LatencyMiddleware(d.metrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if len(d.cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", request.HeaderRequestID},
			ExposedHeaders:   []string{request.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", handleHealth(d.health))
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(d.cfg.Server.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(authmw.RequireAuth(d.validator, d.log))
		r.Use(d.limiter.RateLimitUser)
		d.records.Register(r)
		d.deletions.Register(r)
	})

	if d.cfg.Server.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(request.Timeout(d.cfg.Server.RequestTimeout))
			r.Use(adminmw.RequireAdminToken(d.cfg.Server.AdminToken, d.log))
			d.deletions.RegisterAdmin(r)
		})
	} else {
		d.log.Warn("ADMIN_API_TOKEN not set; admin endpoints disabled")
	}

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
