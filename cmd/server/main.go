package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"fleetdocs/internal/document/scheduler"
	"fleetdocs/internal/ops"
	"fleetdocs/internal/platform/config"
	"fleetdocs/internal/platform/httpserver"
	"fleetdocs/internal/platform/kafka"
	"fleetdocs/internal/platform/logger"
	"fleetdocs/internal/platform/metrics"
	"fleetdocs/internal/platform/tracing"
	"fleetdocs/pkg/platform/audit/worker"
)

// main wires the document engine, runs the sweep and reminder tasks under
// leases, relays lifecycle events and serves the ops endpoints until a
// termination signal arrives.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, flush, err := logger.New(logger.Options{
		Development: cfg.IsDevelopment(),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Env,
	})
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := metrics.NewRegistry()
	eng, cleanup, err := buildEngine(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	runner, err := scheduler.New(eng.locker,
		scheduler.WithLogger(log),
		scheduler.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		return err
	}
	for _, task := range []scheduler.Task{
		{Name: "sweep", Interval: cfg.Schedule.SweepInterval, Fn: runTask(log, "sweep", eng.Sweeper.Run)},
		{Name: "reminders", Interval: cfg.Schedule.ReminderInterval, Fn: runTask(log, "reminders", eng.Reminders.Run)},
	} {
		if err := runner.Add(task); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	opsOpts := append([]ops.Option{
		ops.WithLogger(log),
		ops.WithMetricsHandler(metrics.Handler(reg)),
		ops.WithTaskTrigger(runner),
	}, eng.checks...)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return err
		}
		opsOpts = append(opsOpts, ops.WithCheck("kafka", producer.Health))

		relay := worker.NewWorker(eng.outbox, producer,
			worker.WithLogger(log),
			worker.WithBatchSize(cfg.Kafka.RelayBatch),
			worker.WithInterval(cfg.Kafka.RelayInterval),
		)
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		log.WarnContext(ctx, "no kafka brokers configured, events stay in the outbox")
	}

	srv := httpserver.New(cfg.Addr, ops.NewRouter(ops.NewHandler(opsOpts...)))
	g.Go(func() error { return httpserver.Serve(gctx, srv, log) })
	g.Go(func() error { return runner.Run(gctx) })

	log.InfoContext(ctx, "fleetdocs started", "addr", cfg.Addr, "env", cfg.Env)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("fleetdocs stopped")
	return nil
}
