package main

import (
	"context"
	"time"

	"fxledger/internal/amqp"
	"fxledger/internal/cli"
	"fxledger/internal/log"
	"fxledger/internal/worker"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting rates-worker")

	be := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	var publisher worker.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, refreshing without announcements", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	refresher := worker.NewRatesRefresher(cli.NewRateSource(cfg), be.Rates, publisher, worker.RefresherConfig{
		Interval: cfg.RatesRefreshInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := refresher.Stop(ctx); err != nil {
			logger.Error("Refresher stop error", log.FieldError, err)
		}
	})

	if err := refresher.Start(ctx); err != nil {
		logger.Error("Failed to start refresher", log.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("rates-worker stopped")
}
