package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"fxledger/internal/aggregate"
	"fxledger/internal/cache"
	"fxledger/internal/core"
	"fxledger/internal/csvio"
	"fxledger/internal/log"
	"fxledger/internal/rates"
	"fxledger/internal/store"
)

const (
	defaultMonths    = 6
	maxMonths        = 36
	maxCoordinators  = 1024
	coordinatorIdle  = 24 * time.Hour
	defaultWaitLimit = 2 * time.Second
)

// LedgerConfig holds the knobs of a LedgerService.
type LedgerConfig struct {
	DefaultCurrency string
	// WaitTimeout bounds how long a dashboard waits for fresh rates.
	WaitTimeout  time.Duration
	RatesTTL     time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

// LedgerService ties the stores to per-user rate coordinators and renders
// dashboards, conversions and CSV transfers.
type LedgerService struct {
	ledger  store.Ledger
	fetcher rates.Fetcher
	rates   rates.Store
	config  LedgerConfig
	logger  *log.StructuredLogger

	mu           sync.Mutex
	coordinators *cache.LRUCache[*rates.Coordinator]
}

// NewLedgerService creates a service. rateStore may be nil, in which case
// every coordinator keeps its own memory store.
func NewLedgerService(ledger store.Ledger, fetcher rates.Fetcher, rateStore rates.Store, config LedgerConfig, logger *log.Logger) *LedgerService {
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = rates.AnchorCurrency
	}
	config.DefaultCurrency = core.NormalizeCurrency(config.DefaultCurrency)
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = defaultWaitLimit
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &LedgerService{
		ledger:       ledger,
		fetcher:      fetcher,
		rates:        rateStore,
		config:       config,
		logger:       log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		coordinators: cache.NewLRUCache[*rates.Coordinator](maxCoordinators, coordinatorIdle),
	}
	s.coordinators.OnEvict(func(userID string, c *rates.Coordinator) {
		go c.Close()
	})
	return s
}

// Coordinators exposes the coordinator cache for periodic cleanup.
func (s *LedgerService) Coordinators() cache.Cleaner { return s.coordinators }

// coordinator returns the user's coordinator, creating it on the default
// currency on first use.
func (s *LedgerService) coordinator(ctx context.Context, userID string) *rates.Coordinator {
	if c, ok := s.coordinators.Get(userID); ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.coordinators.Get(userID); ok {
		return c
	}
	opts := []rates.CoordinatorOption{rates.WithClock(s.config.Now)}
	if s.rates != nil {
		opts = append(opts, rates.WithStore(s.rates))
	}
	if s.config.RatesTTL > 0 {
		opts = append(opts, rates.WithTTL(s.config.RatesTTL))
	}
	if s.config.FetchTimeout > 0 {
		opts = append(opts, rates.WithFetchTimeout(s.config.FetchTimeout))
	}
	c := rates.NewCoordinator(s.fetcher, opts...)
	c.Select(ctx, s.config.DefaultCurrency)
	s.coordinators.Set(userID, c)
	return c
}

// SelectCurrency switches the user's display currency and returns the
// snapshot published immediately, usually an optimistic one.
func (s *LedgerService) SelectCurrency(ctx context.Context, userID, currency string) (rates.Snapshot, error) {
	currency, err := supported(currency)
	if err != nil {
		return rates.Snapshot{}, err
	}
	c := s.coordinator(ctx, userID)
	g := c.Select(ctx, currency)
	snap := c.Snapshot()
	s.logger.LogRatesPublished(ctx, currency, g, snap.State.String())
	return snap, nil
}

func supported(currency string) (string, error) {
	if err := core.ValidateCurrency(currency); err != nil {
		return "", err
	}
	currency = core.NormalizeCurrency(currency)
	if !core.IsSupported(currency) {
		return "", fmt.Errorf("%w: %s is not supported", core.ErrInvalidCurrency, currency)
	}
	return currency, nil
}

// RatesSnapshot returns the user's current rate snapshot.
func (s *LedgerService) RatesSnapshot(ctx context.Context, userID string) rates.Snapshot {
	return s.coordinator(ctx, userID).Snapshot()
}

// settled waits, bounded by the configured timeout, for the in-flight
// fetch of c and returns the snapshot to render.
func (s *LedgerService) settled(ctx context.Context, c *rates.Coordinator) rates.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.config.WaitTimeout)
	defer cancel()
	snap, err := c.Wait(ctx, c.Generation())
	if err != nil {
		slog.DebugContext(ctx, "Rendering before rates settled", "currency", snap.Currency, "state", snap.State.String())
	}
	return snap
}

// Conversion is the result of converting one amount.
type Conversion struct {
	Amount    float64     `json:"amount"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Result    float64     `json:"result"`
	Formatted string      `json:"formatted"`
	Base      string      `json:"base"`
	State     rates.State `json:"state"`
	Assumed   bool        `json:"assumed,omitempty"`
}

// Convert converts amount with the user's current table. An empty to means
// the display currency.
func (s *LedgerService) Convert(ctx context.Context, userID string, amount float64, from, to string) (Conversion, error) {
	for _, code := range []string{from, to} {
		if code == "" {
			continue
		}
		if err := core.ValidateCurrency(code); err != nil {
			return Conversion{}, err
		}
	}
	snap := s.settled(ctx, s.coordinator(ctx, userID))
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	if to == "" {
		to = snap.Currency
	}
	result := rates.Convert(amount, from, to, snap.Table)
	conv := Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Result:    core.Round(result, to),
		Formatted: core.Format(result, to),
		Base:      snap.Currency,
		State:     snap.State,
	}
	if snap.Table != nil {
		conv.Assumed = snap.Table.Assumed
	}
	s.logger.LogConversion(ctx, amount, from, to)
	return conv, nil
}

// Dashboard renders the balance series and monthly summary of the user in
// currency, selecting it first when it differs from the current one.
func (s *LedgerService) Dashboard(ctx context.Context, userID, currency string, months int) (aggregate.Report, error) {
	c := s.coordinator(ctx, userID)
	if currency != "" {
		currency, err := supported(currency)
		if err != nil {
			return aggregate.Report{}, err
		}
		if currency != c.Snapshot().Currency {
			c.Select(ctx, currency)
		}
	}
	if months <= 0 {
		months = defaultMonths
	}
	if months > maxMonths {
		months = maxMonths
	}

	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("list transactions: %w", err)
	}
	budgets, err := s.ledger.ListBudgets(ctx, userID)
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("list budgets: %w", err)
	}

	snap := s.settled(ctx, c)
	return aggregate.Dashboard(aggregate.Input{
		Transactions:   txs,
		Budgets:        budgets,
		Table:          snap.Table,
		RatesAvailable: snap.Available(),
		Display:        snap.Currency,
		Months:         months,
		Now:            s.config.Now(),
	}), nil
}

// ListTransactions returns the user's transactions ordered by date.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.ledger.List(ctx, userID)
}

// ListConverted returns the user's transactions with amounts expressed in the
// current display currency.
func (s *LedgerService) ListConverted(ctx context.Context, userID string) ([]core.ConvertedTransaction, error) {
	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := s.settled(ctx, s.coordinator(ctx, userID))
	conv := rates.NewConverter(snap.Table, snap.Currency)
	out := make([]core.ConvertedTransaction, len(txs))
	for i, tx := range txs {
		out[i] = conv.ConvertTransaction(tx)
	}
	return out, nil
}

// CreateTransaction validates and stores tx for the user.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	tx.UserID = userID
	tx.ID = ""
	if tx.Date.IsZero() {
		tx.Date = s.config.Now().UTC()
	}
	created, err := s.ledger.Create(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.logger.LogTransactionCreated(ctx, created.ID, created.Amount, created.Currency)
	return created, nil
}

// UpdateTransaction replaces transaction id of the user.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, tx core.Transaction) (core.Transaction, error) {
	tx.UserID = userID
	tx.ID = id
	updated, err := s.ledger.Update(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return updated, nil
}

// DeleteTransaction removes transaction id of the user.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.ledger.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// ImportResult reports the outcome of a CSV import.
type ImportResult struct {
	Imported int                  `json:"imported"`
	Errors   []*csvio.ImportError `json:"-"`
}

// Import stores every valid row of the CSV in r. Rows without a currency
// take currency, or the display currency when currency is empty.
func (s *LedgerService) Import(ctx context.Context, userID string, r io.Reader, currency string) (ImportResult, error) {
	if currency == "" {
		currency = s.coordinator(ctx, userID).Snapshot().Currency
	}
	txs, rowErrs, err := csvio.Import(r, csvio.Options{UserID: userID, Currency: currency, Now: s.config.Now})
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv: %w", err)
	}

	res := ImportResult{Errors: rowErrs}
	for _, tx := range txs {
		if _, err := s.ledger.Create(ctx, tx); err != nil {
			return res, fmt.Errorf("store imported row: %w", err)
		}
		res.Imported++
	}
	slog.InfoContext(ctx, "Transactions imported",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpImport,
		"imported", res.Imported,
		"rejected", len(rowErrs))
	return res, nil
}

// Export writes the user's transactions as CSV.
func (s *LedgerService) Export(ctx context.Context, userID string, w io.Writer) error {
	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := csvio.Export(w, txs); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	slog.InfoContext(ctx, "Transactions exported",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpExport,
		"count", len(txs))
	return nil
}

// ListBudgets returns the user's budgets by month.
func (s *LedgerService) ListBudgets(ctx context.Context, userID string) (map[core.MonthKey]core.BudgetRecord, error) {
	return s.ledger.ListBudgets(ctx, userID)
}

// SetBudget stores the budget of month.
func (s *LedgerService) SetBudget(ctx context.Context, userID, month string, b core.BudgetRecord) error {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return s.ledger.UpsertBudget(ctx, userID, key, b)
}

// RemoveBudget deletes the budget of month. Absent months are not an error.
func (s *LedgerService) RemoveBudget(ctx context.Context, userID, month string) error {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return err
	}
	return s.ledger.RemoveBudget(ctx, userID, key)
}

// WarmRates stores an externally fetched table so the next selection of its
// base starts from it.
func (s *LedgerService) WarmRates(ctx context.Context, table rates.Table) error {
	if s.rates == nil {
		return errors.New("no shared rate store configured")
	}
	ttl := s.config.RatesTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return s.rates.Set(ctx, rates.StoreKey(table.Base), table, s.config.Now().Add(ttl))
}

// Close waits for in-flight rate fetches and closes the ledger.
func (s *LedgerService) Close() error {
	s.coordinators.OnEvict(func(_ string, c *rates.Coordinator) { c.Close() })
	s.coordinators.Purge()
	if s.ledger == nil {
		return nil
	}
	if err := s.ledger.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}
