package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	deletionhandler "mastercom/internal/deletion/handler"
	deletionmetrics "mastercom/internal/deletion/metrics"
	deletionservice "mastercom/internal/deletion/service"
	jwttoken "mastercom/internal/jwt_token"
	"mastercom/internal/platform/config"
	"mastercom/internal/platform/httpserver"
	"mastercom/internal/platform/logger"
	platformmetrics "mastercom/internal/platform/metrics"
	ratelimitmw "mastercom/internal/ratelimit/middleware"
	recordhandler "mastercom/internal/records/handler"
	recordmetrics "mastercom/internal/records/metrics"
	recordservice "mastercom/internal/records/service"
	"mastercom/pkg/platform/audit/publishers/compliance"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, infra, err := newApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer infra.Close()

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mastercom",
			"addr", cfg.Server.Addr,
			"store", infra.backend,
			"review_lock", infra.lockBackend,
			"outbox_relay", infra.relay != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if infra.relay != nil {
		g.Go(func() error {
			if err := infra.relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newApp composes stores, services and handlers into the HTTP router.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (http.Handler, *infrastructure, error) {
	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("build infrastructure: %w", err)
	}

	publisher := compliance.New(infra.auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)

	records := recordservice.New(infra.recordStore,
		recordservice.WithLogger(log),
		recordservice.WithAuditPublisher(publisher),
		recordservice.WithMetrics(recordmetrics.New(reg)),
	)

	deletionOpts := []deletionservice.Option{
		deletionservice.WithLogger(log),
		deletionservice.WithAuditPublisher(publisher),
		deletionservice.WithMetrics(deletionmetrics.New(reg)),
		deletionservice.WithLock(infra.reviewLock),
	}
	if infra.transactor != nil {
		deletionOpts = append(deletionOpts, deletionservice.WithTransactor(infra.transactor))
	}
	deletions := deletionservice.New(infra.ledger, infra.recordStore, deletionOpts...)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	router := newRouter(routerDeps{
		cfg:       cfg,
		log:       log,
		registry:  reg,
		metrics:   platformmetrics.New(reg),
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		health:    infra.Health,
		limiter:   ratelimitmw.New(infra.buckets, cfg.RateLimit.Requests, cfg.RateLimit.Window, log),
		records:   recordhandler.New(records, log),
		deletions: deletionhandler.New(deletions, log),
	})
	return router, infra, nil
}
