package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/safemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/adapters/simulation"
	"github.com/samirrijal/safemap/internal/adapters/valkey"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/core/usecases"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/logging"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("safemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Database: optional, maps fall back to the seed entities without it.
	var (
		entityProvider ports.EntityProvider
		events         ports.SystemEventRepository
	)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, running without stored entities", "error", err)
	} else {
		defer db.Close()
		go db.ReportPoolMetrics(ctx, 15*time.Second)

		entityRepo := postgres.NewEntityRepo(db)
		entityProvider = entityRepo
		events = postgres.NewEventRepo(db)
		deps.Entities = usecases.NewEntityService(entityRepo)
		deps.DB = db
	}

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	var publisher *natsadapter.Publisher
	var eventPublisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer p.Close()
		publisher = p
		eventPublisher = p
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Telemetry refresher
	provider, closeProvider, err := metricsProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("metrics provider: %v", err)
	}
	defer closeProvider()

	refresher := usecases.NewTelemetryRefresher(provider, simulation.InitialSnapshot(), events,
		usecases.RefresherConfig{Interval: cfg.Health.Interval, RefreshLatency: cfg.Health.RefreshLatency},
		slog.Default())
	if publisher != nil {
		refresher.OnSnapshot(func(ctx context.Context, snap *domain.MetricsSnapshot) {
			if err := publisher.PublishSnapshot(ctx, snap); err != nil {
				slog.Warn("publish health snapshot", "error", err)
			}
		})
	}
	refresher.Start(ctx)
	defer refresher.Stop()

	deps.Health = usecases.NewHealthService(refresher, events, cfg.Health.EventsLimit, slog.Default())

	// Map sessions
	maps := usecases.NewMapService(entityProvider, simulation.NewSeedProvider(), cache, eventPublisher,
		usecases.MapServiceConfig{
			Defaults:       cfg.Map.Defaults(),
			EntityCacheTTL: cfg.Map.EntityCacheTTL,
			IdleTimeout:    cfg.Map.SessionIdleTimeout,
		},
		slog.Default())
	if tick := cfg.Map.MaintenanceInterval(); tick > 0 {
		go maps.RunReloader(ctx, tick)
	}
	deps.Maps = maps

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "SafeMap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Location, Link, ETag",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "health_source", cfg.Health.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	cancel()

	slog.Info("server stopped", "open_sessions", maps.Sessions())
}

// metricsProvider picks where health readings come from: the local
// simulator, or the feed published by cmd/telemetry.
func metricsProvider(ctx context.Context, cfg *config.Config) (ports.MetricsProvider, func(), error) {
	switch cfg.Health.Source {
	case "nats":
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "safemap-api-health")
		if err != nil {
			return nil, nil, fmt.Errorf("nats subscriber: %w", err)
		}
		feed, err := natsadapter.NewMetricsFeed(ctx, sub)
		if err != nil {
			sub.Close()
			return nil, nil, err
		}
		return feed, sub.Close, nil
	default:
		return simulation.NewMetricsSimulator(nil), func() {}, nil
	}
}
