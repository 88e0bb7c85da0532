// Command tracker-worker mirrors the expense table into Google Sheets. It
// follows the AMQP change feed when one is configured and resyncs the
// whole table at startup and every RESYNC_INTERVAL.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/cli"
	"tracker/internal/config"
	applog "tracker/internal/log"
	"tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, nil)
	logger.Info("Starting tracker-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.LogError(ctx, "Worker stopped with error", err, applog.OpShutdown, applog.NewFields())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, logger *applog.Logger, cfg *config.Config) error {
	repo, err := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	exporter, err := cli.NewExporter(ctx, logger, cfg)
	if err != nil {
		return err
	}
	w := worker.NewExportWorker(repo, exporter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return resyncLoop(gctx, logger, w, cfg.ResyncInterval)
	})

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("initialize AMQP client: %w", err)
		}
		defer client.Close()

		g.Go(func() error {
			return client.ConsumeExpenseEvents(gctx, w.HandleEvent)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic resync only")
	}

	// Cancellation of the parent context is a normal shutdown.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// resyncer is the part of the export worker the loop drives.
type resyncer interface {
	Resync(ctx context.Context) error
}

// resyncLoop resyncs immediately and then on every tick until ctx is done.
// A failed pass is logged and retried on the next tick.
func resyncLoop(ctx context.Context, logger *applog.Logger, r resyncer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if err := r.Resync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.LogError(ctx, "Resync failed", err, applog.OpResync, applog.NewFields())
		} else {
			logger.Debug("Resync pass finished", applog.FieldDurationHuman, time.Since(start).String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
