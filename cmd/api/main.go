// Package main is the entry point for ariadne — a local-first observability
// backend for agent-framework telemetry. Agent processes POST trace and span
// events to /ingest; viewers follow the live stream on /events over SSE.
//
// Design constraints (enforced here):
//   - Loopback by default. This is a workstation tool; HOST=127.0.0.1 unless
//     the operator says otherwise.
//   - All state is process-lifetime. The store is a bounded in-memory ring;
//     there is no database and no durable history.
//   - Ingest never blocks on consumers: slow SSE subscribers drop their
//     oldest queued events, and the optional NATS relay is fire-and-forget.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/config"
	"github.com/ThomasRohde/ariadne/internal/handler"
	"github.com/ThomasRohde/ariadne/internal/relay"
	"github.com/ThomasRohde/ariadne/internal/service"
	"github.com/ThomasRohde/ariadne/internal/sse"
	"github.com/ThomasRohde/ariadne/internal/store"
	"github.com/ThomasRohde/ariadne/internal/telemetry"
)

func main() {
	// ── Structured Logger ──────────────────────────────────────────────────
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// ── OpenTelemetry Tracer ───────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "ariadne", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}
	}

	// ── Configuration ──────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}

	// ── Event Store & SSE Manager ──────────────────────────────────────────
	// The two long-lived values of the service; everything else is wiring.
	eventStore := store.New(cfg.MaxEvents)
	manager := sse.NewManager(logger, sse.Options{QueueCapacity: cfg.QueueSize})
	defer manager.Close()
	logger.Info("event store ready", zap.Int("capacity", eventStore.Cap()))

	// ── NATS JetStream Relay (optional) ────────────────────────────────────
	var eventRelay service.EventRelay
	if cfg.NATSURL != "" {
		r, err := relay.New(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal("NATS initialization failed", zap.Error(err))
		}
		defer r.Close()

		if err := r.ProvisionStream(); err != nil {
			logger.Fatal("NATS stream provisioning failed", zap.Error(err))
		}
		eventRelay = r
		logger.Info("NATS relay enabled")
	}

	// ── Ingest Pipeline ────────────────────────────────────────────────────
	ingestSvc := service.NewIngestService(eventStore, manager, eventRelay, logger)

	// ── HTTP Server ────────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true

	// OTel tracing middleware (must be first to capture full request lifecycle)
	e.Use(otelecho.Middleware("ariadne"))

	// Viewers are browser apps served from the dev origin; accept the
	// localhost and 127.0.0.1 spellings interchangeably.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
		MaxAge:       3600,
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler.NewTelemetryHandler(ingestSvc, manager, eventStore, logger).Register(e)

	go func() {
		logger.Info("ariadne listening", zap.String("addr", cfg.Addr()))
		if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Echo shutdown error", zap.Error(err))
	}

	// manager and relay are closed by the deferred calls registered at
	// startup; Close terminates every live subscription.

	logger.Info("ariadne shut down cleanly")
}
