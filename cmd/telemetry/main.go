package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/adapters/simulation"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/logging"
)

// telemetry publishes health readings on the NATS feed consumed by API
// instances running with SAFEMAP_HEALTH_SOURCE=nats. Until real collectors
// are wired it publishes simulated readings.
func main() {
	interval := flag.Duration("interval", 0, "publish interval (default: health.interval)")
	flag.Parse()

	cfg, err := config.Load("safemap-telemetry")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	every := cfg.Health.Interval
	if *interval > 0 {
		every = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	sim := simulation.NewMetricsSimulator(nil)
	current := simulation.InitialSnapshot()

	publish := func() {
		next, err := sim.Next(ctx, current)
		if err != nil {
			slog.Error("simulate reading", "error", err)
			return
		}
		next.UpdatedAt = time.Now()

		pubCtx, pubCancel := context.WithTimeout(ctx, every)
		defer pubCancel()
		if err := pub.PublishFeed(pubCtx, next); err != nil {
			slog.Warn("publish reading", "error", err)
			return
		}
		if next.Overall() != current.Overall() {
			slog.Info("overall health changed", "from", current.Overall(), "to", next.Overall())
		}
		current = next
		logReading(current)
	}

	slog.Info("telemetry publisher starting", "interval", every.String(), "subject", natsadapter.SubjectHealthFeed)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	publish()
	for {
		select {
		case <-ticker.C:
			publish()
		case sig := <-quit:
			slog.Info("shutting down telemetry publisher", "signal", sig.String())
			return
		}
	}
}

func logReading(s *domain.MetricsSnapshot) {
	slog.Debug("reading published",
		"api_ms", s.API.ResponseTimeMs,
		"db_connections", s.Database.Connections,
		"ws_connections", s.WebSocket.Connections,
		"cpu", s.Server.CPU,
		"memory", s.Server.Memory,
	)
}
