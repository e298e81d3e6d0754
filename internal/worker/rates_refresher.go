// Package worker runs the background jobs of the rates worker binary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"fxledger/internal/core"
	"fxledger/internal/log"
	"fxledger/internal/rates"
)

var refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fxledger_rates_refresh_total",
	Help: "Scheduled rate refreshes by base and outcome.",
}, []string{"base", "outcome"})

// Publisher announces freshly stored tables to other processes.
type Publisher interface {
	PublishRatesRefreshed(ctx context.Context, table rates.Table, provider string) error
}

// RefresherConfig holds configuration for the rates refresher
type RefresherConfig struct {
	// Interval is how often every base is refreshed (default: 15m)
	Interval time.Duration

	// TTL is how long a stored table stays usable (default: 2x Interval)
	TTL time.Duration

	// Bases lists the currencies to refresh (default: all supported)
	Bases []string

	// Concurrency bounds simultaneous provider requests (default: 4)
	Concurrency int
}

// DefaultRefresherConfig returns sensible defaults
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Interval:    15 * time.Minute,
		TTL:         30 * time.Minute,
		Bases:       core.SupportedCurrencies,
		Concurrency: 4,
	}
}

// RefreshStats summarizes one refresh round.
type RefreshStats struct {
	Stored    int
	Failed    int
	Published int
}

// RatesRefresher periodically fetches every base, stores authoritative tables
// and announces them. Failed fetches are skipped: built-in tables are never
// stored.
type RatesRefresher struct {
	fetcher   rates.Fetcher
	store     rates.Store
	publisher Publisher
	config    RefresherConfig
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRatesRefresher creates a refresher. publisher may be nil.
func NewRatesRefresher(fetcher rates.Fetcher, store rates.Store, publisher Publisher, config RefresherConfig) *RatesRefresher {
	def := DefaultRefresherConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.TTL <= 0 {
		config.TTL = 2 * config.Interval
	}
	if len(config.Bases) == 0 {
		config.Bases = def.Bases
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	return &RatesRefresher{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (w *RatesRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("rates refresher is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Rates refresher started",
		log.FieldComponent, log.ComponentWorker,
		"interval", w.config.Interval,
		"bases", w.config.Bases)
	return nil
}

// Stop signals the loop and waits for the current round to finish.
func (w *RatesRefresher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Rates refresher stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rates refresher stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the refresher loop is active
func (w *RatesRefresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *RatesRefresher) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Refresh immediately on startup
	w.refreshLogged(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshLogged(ctx)
		}
	}
}

func (w *RatesRefresher) refreshLogged(ctx context.Context) {
	start := time.Now()
	stats, err := w.Refresh(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Rates refresh failed", log.FieldError, err)
		return
	}
	slog.InfoContext(ctx, "Rates refreshed",
		log.FieldOperation, log.OpRefresh,
		"stored", stats.Stored,
		"failed", stats.Failed,
		"published", stats.Published,
		log.FieldDuration, time.Since(start).Milliseconds())
}

// Refresh runs one round over every configured base. A base whose fetch
// fails or yields an incomplete table is counted and skipped. Only storage
// errors fail the round.
func (w *RatesRefresher) Refresh(ctx context.Context) (RefreshStats, error) {
	var (
		mu    sync.Mutex
		stats RefreshStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)

	for _, base := range w.config.Bases {
		g.Go(func() error {
			table, provider, err := w.fetch(gctx, base)
			if err != nil {
				refreshTotal.WithLabelValues(base, "failed").Inc()
				slog.WarnContext(gctx, "Skipping base", log.FieldBase, base, log.FieldError, err)
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}
			if err := w.store.Set(gctx, rates.StoreKey(base), table, w.now().Add(w.config.TTL)); err != nil {
				return fmt.Errorf("store %s rates: %w", base, err)
			}
			refreshTotal.WithLabelValues(base, "stored").Inc()

			published := false
			if w.publisher != nil {
				if err := w.publisher.PublishRatesRefreshed(gctx, table, provider); err != nil {
					slog.WarnContext(gctx, "Failed to publish rates", log.FieldBase, base, log.FieldError, err)
				} else {
					published = true
				}
			}

			mu.Lock()
			stats.Stored++
			if published {
				stats.Published++
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return stats, err
}

func (w *RatesRefresher) fetch(ctx context.Context, base string) (rates.Table, string, error) {
	res := w.fetcher.FetchResult(ctx, base)
	if !res.OK() {
		if res.Err == nil {
			return rates.Table{}, res.Provider, errors.New("empty result")
		}
		return rates.Table{}, res.Provider, res.Err
	}
	table := res.Table.Rebase(base)
	if err := table.Validate(base); err != nil {
		return rates.Table{}, res.Provider, err
	}
	return table, res.Provider, nil
}
