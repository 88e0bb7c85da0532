package main

import (
	"time"

	"github.com/spf13/cobra"

	"tracker/internal/cli"
	apphttp "tracker/internal/http"
	applog "tracker/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.WithComponent(applog.ComponentHTTP)

			svc, err := cli.NewService(logger, a.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("Failed to close expense service", "error", err)
				}
			}()

			srv, err := apphttp.NewServer(a.cfg.Addr(), svc, apphttp.Options{
				PageSize:           a.cfg.PageSize,
				RateLimitPerMinute: a.cfg.RateLimitPerMinute,
				CacheTTL:           a.cfg.CacheTTL,
				Logger:             logger,
			})
			if err != nil {
				return err
			}

			ctx, cancel := cli.SignalContext(logger)
			defer cancel()

			logger.Info("Starting tracker server",
				"addr", a.cfg.Addr(),
				"db", a.cfg.SQLiteDBPath,
				"amqp", a.cfg.AMQPEnabled())
			return cli.RunServer(ctx, logger, srv, shutdownTimeout)
		},
	}
}
