package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fxledger/internal/backend"
	"fxledger/internal/cli"
	"fxledger/internal/config"
	"fxledger/internal/log"
	"fxledger/internal/rates"
	"fxledger/internal/services"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fxctl",
		Short: "Operate an fxledger installation from the shell",
		Long: `fxctl queries exchange rates, converts amounts and moves ledger data
in and out of the configured backend. Configuration comes from the same
environment variables (and .env file) as the server.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ratesCmd())
	cmd.AddCommand(convertCmd())
	cmd.AddCommand(importCmd())
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(summaryCmd())
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what the subcommands share once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

// loadApp reads and validates the configuration. Logs go to stderr so that
// command output stays pipeable.
func loadApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lc := log.ConfigFrom(cfg.LogLevel, cfg.LogFormat, "fxctl")
	lc.Output = os.Stderr
	logger := log.New(lc)
	log.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) source() *rates.Source {
	return cli.NewRateSource(a.cfg)
}

// ledger opens the configured backend behind a LedgerService. Closing the
// service closes the backend.
func (a *app) ledger(ctx context.Context) (*services.LedgerService, error) {
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(a.logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	return services.NewLedgerService(be.Ledger, a.source(), be.Rates, services.LedgerConfig{
		DefaultCurrency: a.cfg.DefaultCurrency,
		WaitTimeout:     a.cfg.RatesWaitTimeout,
		RatesTTL:        a.cfg.RatesCacheTTL,
		FetchTimeout:    a.cfg.RatesFetchTimeout,
	}, a.logger.WithComponent(log.ComponentLedger)), nil
}
