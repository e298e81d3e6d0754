package services

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/core"
	"fxledger/internal/rates"
	"fxledger/internal/store/memory"
)

var eurTable = rates.Table{Base: "EUR", Rates: map[string]float64{
	"EUR": 1, "USD": 1.1, "PLN": 4.6, "DKK": 7.44, "GBP": 0.86,
}}

// fakeFetcher answers every base from one EUR table, or fails.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeFetcher) FetchResult(_ context.Context, base string) rates.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return rates.Failed(errors.New("upstream down"), "fake")
	}
	return rates.Ok(eurTable.Rebase(base), "fake")
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) SetFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, f rates.Fetcher) *LedgerService {
	t.Helper()
	s := NewLedgerService(memory.New(), f, rates.NewMemoryStore(16, time.Hour), LedgerConfig{
		DefaultCurrency: "EUR",
		WaitTimeout:     time.Second,
		Now:             func() time.Time { return fixedNow },
	}, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLedgerService_Convert(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	conv, err := s.Convert(ctx, "alice", 100, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 110, conv.Result, 1e-9)
	assert.Equal(t, "EUR", conv.Base)
	assert.Equal(t, rates.Settled, conv.State)

	conv, err = s.Convert(ctx, "alice", 110, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, "EUR", conv.To)
	assert.InDelta(t, 100, conv.Result, 1e-9)

	_, err = s.Convert(ctx, "alice", 1, "E1R", "USD")
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)

	require.NotPanics(t, func() {
		conv, err = s.Convert(ctx, "alice", 1e308, "EUR", "DKK")
	})
	require.NoError(t, err)
	assert.True(t, math.IsInf(conv.Result, 1))
	assert.Equal(t, "+Inf DKK", conv.Formatted)
}

func TestLedgerService_SelectCurrency(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	snap, err := s.SelectCurrency(ctx, "alice", "pln")
	require.NoError(t, err)
	assert.Equal(t, "PLN", snap.Currency)
	require.NotNil(t, snap.Table)

	conv, err := s.Convert(ctx, "alice", 110, "USD", "")
	require.NoError(t, err)
	assert.Equal(t, "PLN", conv.To)
	assert.InDelta(t, 460, conv.Result, 1e-9)

	// other users keep the default currency
	assert.Equal(t, "EUR", s.RatesSnapshot(ctx, "bob").Currency)

	_, err = s.SelectCurrency(ctx, "alice", "JPY")
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct{ release chan struct{} }

func (f blockingFetcher) FetchResult(ctx context.Context, base string) rates.Result {
	select {
	case <-f.release:
		return rates.Ok(eurTable.Rebase(base), "blocking")
	case <-ctx.Done():
		return rates.Failed(ctx.Err(), "blocking")
	}
}

func TestLedgerService_SelectCurrencyDoesNotWait(t *testing.T) {
	f := blockingFetcher{release: make(chan struct{})}
	s := newTestService(t, f)
	t.Cleanup(func() { close(f.release) })

	snap, err := s.SelectCurrency(context.Background(), "alice", "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", snap.Currency)
	assert.Equal(t, rates.FetchingWithFallback, snap.State)
	assert.True(t, snap.Pending)
	require.NotNil(t, snap.Table)
	assert.Equal(t, "USD", snap.Table.Base)
}

func TestLedgerService_Dashboard(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	_, err := s.CreateTransaction(ctx, "alice", core.Transaction{
		Description: "rent", Amount: -50, Currency: "USD", Date: fixedNow.AddDate(0, 0, -10),
	})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, "alice", core.Transaction{
		Description: "salary", Amount: 200, Currency: "EUR", Date: fixedNow.AddDate(0, 0, -5),
	})
	require.NoError(t, err)
	require.NoError(t, s.SetBudget(ctx, "alice", "2024-03", core.BudgetRecord{Amount: 40, Currency: "EUR"}))

	report, err := s.Dashboard(ctx, "alice", "", 3)
	require.NoError(t, err)
	assert.Equal(t, "EUR", report.Currency)
	assert.False(t, report.RatesUnavailable)
	require.NotNil(t, report.Balance)
	assert.InDelta(t, 154.55, *report.Balance, 1e-9)
	require.Len(t, report.Months, 3)
	last := report.Months[2]
	assert.Equal(t, core.MonthKey("2024-03"), last.Month)
	assert.True(t, last.OverBudget)

	report, err = s.Dashboard(ctx, "alice", "usd", 0)
	require.NoError(t, err)
	assert.Equal(t, "USD", report.Currency)
	assert.Len(t, report.Months, defaultMonths)

	_, err = s.Dashboard(ctx, "alice", "nope", 1)
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func TestLedgerService_DashboardWithoutRates(t *testing.T) {
	s := newTestService(t, &fakeFetcher{fail: true})
	ctx := context.Background()

	_, err := s.CreateTransaction(ctx, "alice", core.Transaction{Description: "x", Amount: 1, Currency: "EUR"})
	require.NoError(t, err)

	report, err := s.Dashboard(ctx, "alice", "", 1)
	require.NoError(t, err)
	assert.True(t, report.RatesUnavailable)
	assert.Nil(t, report.Balance)
	assert.Equal(t, 1, report.Transactions)
}

func TestLedgerService_TransactionLifecycle(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	created, err := s.CreateTransaction(ctx, "alice", core.Transaction{ID: "ignored", Description: "coffee", Amount: -3})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID)
	assert.Equal(t, fixedNow, created.Date)

	_, err = s.CreateTransaction(ctx, "alice", core.Transaction{Description: "", Amount: 1})
	assert.ErrorIs(t, err, core.ErrEmptyDescription)

	updated, err := s.UpdateTransaction(ctx, "alice", created.ID, core.Transaction{Description: "tea", Amount: -2, Date: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, "tea", updated.Description)

	_, err = s.UpdateTransaction(ctx, "bob", created.ID, core.Transaction{Description: "tea", Amount: -2, Date: fixedNow})
	assert.ErrorIs(t, err, core.ErrNotFound)

	converted, err := s.ListConverted(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, converted, 1)
	assert.InDelta(t, -2, converted[0].ConvertedAmount, 1e-9)

	require.NoError(t, s.DeleteTransaction(ctx, "alice", created.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "alice", created.ID), core.ErrNotFound)

	list, err := s.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLedgerService_ImportExport(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	csv := "date,description,amount,currency\n" +
		"2024-03-01,Lunch,-12.50,PLN\n" +
		"2024-03-02,,abc,EUR\n" +
		"2024-03-03,Refund,7,\n"
	res, err := s.Import(ctx, "alice", strings.NewReader(csv), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Line)

	list, err := s.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "EUR", list[1].Currency)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, "alice", &buf))
	out := buf.String()
	assert.Contains(t, out, "2024-03-01,Lunch,-12.5,PLN")
	assert.Equal(t, 3, strings.Count(out, "\n"))

	err = s.Export(ctx, "alice", failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write csv")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLedgerService_Budgets(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	require.NoError(t, s.SetBudget(ctx, "alice", "2024-02", core.BudgetRecord{Amount: 100, Currency: "USD"}))
	assert.ErrorIs(t, s.SetBudget(ctx, "alice", "2024-13", core.BudgetRecord{Amount: 1}), core.ErrInvalidMonth)
	assert.Error(t, s.SetBudget(ctx, "alice", "2024-04", core.BudgetRecord{Amount: -1}))

	budgets, err := s.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, core.BudgetRecord{Amount: 100, Currency: "USD"}, budgets["2024-02"])

	require.NoError(t, s.RemoveBudget(ctx, "alice", "2024-02"))
	require.NoError(t, s.RemoveBudget(ctx, "alice", "2024-02"))
	budgets, err = s.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, budgets)
}

func TestLedgerService_WarmRates(t *testing.T) {
	store := rates.NewMemoryStore(4, time.Hour)
	s := NewLedgerService(memory.New(), &fakeFetcher{}, store, LedgerConfig{RatesTTL: time.Hour}, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.WarmRates(ctx, eurTable.Rebase("GBP")))
	got, ok, err := store.Get(ctx, rates.StoreKey("GBP"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GBP", got.Base)

	bare := NewLedgerService(memory.New(), &fakeFetcher{}, nil, LedgerConfig{}, nil)
	defer bare.Close()
	assert.Error(t, bare.WarmRates(ctx, eurTable))
}
