package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/adapters/simulation"
	"github.com/samirrijal/safemap/internal/core/usecases"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/logging"
	"github.com/samirrijal/safemap/internal/workflows"
)

const sweepWorkflowID = "safemap-health-sweep"

func main() {
	cron := flag.String("cron", "", `start the sweep on this schedule (e.g. "@every 1m") before serving`)
	flag.Parse()

	cfg, err := config.Load("safemap-healthworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()

	acts := &workflows.SweepActivities{}

	if db, err := postgres.New(ctx, cfg.Database.DSN()); err != nil {
		slog.Warn("database unavailable, sweep events will only be logged", "error", err)
	} else {
		defer db.Close()
		acts.Events = postgres.NewEventRepo(db)
	}

	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, readings will not be published", "error", err)
	} else {
		defer pub.Close()
		acts.Publisher = pub
	}

	acts.Refresher = usecases.NewTelemetryRefresher(
		simulation.NewMetricsSimulator(nil),
		simulation.InitialSnapshot(),
		acts.Events,
		usecases.RefresherConfig{Interval: cfg.Health.Interval, RefreshLatency: cfg.Health.RefreshLatency},
		slog.Default(),
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *cron != "" {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:           sweepWorkflowID,
			TaskQueue:    cfg.Temporal.TaskQueue,
			CronSchedule: *cron,
		}, workflows.HealthSweepWorkflow, workflows.SweepInput{Reason: "cron " + *cron})
		if err != nil {
			slog.Warn("schedule health sweep", "error", err)
		} else {
			slog.Info("health sweep scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", *cron)
		}
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.HealthSweepWorkflow)
	w.RegisterActivity(acts)

	slog.Info("health worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
