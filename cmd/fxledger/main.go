package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fxledger/internal/amqp"
	"fxledger/internal/cli"
	apphttp "fxledger/internal/http"
	"fxledger/internal/log"
	"fxledger/internal/middleware/ratelimit"
	"fxledger/internal/rates"
	"fxledger/internal/services"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)

	// coordinators fetch the configured symbols, the proxy asks for everything
	source := cli.NewRateSource(cfg)
	proxySource := cli.NewRateSource(cfg, rates.WithSymbols())

	ledger := services.NewLedgerService(be.Ledger, source, be.Rates, services.LedgerConfig{
		DefaultCurrency: cfg.DefaultCurrency,
		WaitTimeout:     cfg.RatesWaitTimeout,
		RatesTTL:        cfg.RatesCacheTTL,
		FetchTimeout:    cfg.RatesFetchTimeout,
	}, logger.WithComponent(log.ComponentLedger))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Ledger:    ledger,
		Proxy:     services.NewRatesProxy(proxySource, 256, cfg.RatesCacheTTL),
		Ready:     be.Ping,
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// rates still refresh on demand without the broker
			logger.Warn("AMQP unavailable, not consuming rate updates", log.FieldError, err)
		} else {
			amqpClient = client
		}
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Ledger close error", log.FieldError, err)
		}
	})

	if amqpClient != nil {
		go func() {
			amqpLogger := logger.WithComponent(log.ComponentAMQP)
			err := amqpClient.ConsumeRatesRefreshed(runCtx, func(ctx context.Context, t rates.Table) error {
				amqpLogger.DebugContext(ctx, "Warming rates", log.FieldBase, t.Base)
				return ledger.WarmRates(ctx, t)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				amqpLogger.Error("Rate update consumption stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting fxledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"default_currency", cfg.DefaultCurrency,
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
