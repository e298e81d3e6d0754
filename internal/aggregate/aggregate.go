// Package aggregate computes balance series and monthly summaries of
// transactions expressed in a display currency.
package aggregate

import (
	"sort"
	"time"

	"fxledger/internal/core"
	"fxledger/internal/rates"
)

const dateLayout = "2006-01-02"

// Series is a running balance. Empty is set when there were no transactions
// at all, so callers never mistake a missing series for a zero balance.
type Series struct {
	Currency string              `json:"currency"`
	Points   []core.BalancePoint `json:"points,omitempty"`
	Empty    bool                `json:"no_data,omitempty"`
}

// Last returns the final balance, false when the series is empty.
func (s Series) Last() (float64, bool) {
	if len(s.Points) == 0 {
		return 0, false
	}
	return s.Points[len(s.Points)-1].Balance, true
}

// BalanceSeries sorts txs by date, keeping input order for equal dates, and
// accumulates their amounts converted into display. txs is not modified.
func BalanceSeries(txs []core.Transaction, table *rates.Table, display string) Series {
	display = core.NormalizeCurrency(display)
	if len(txs) == 0 {
		return Series{Currency: display, Empty: true}
	}

	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	conv := rates.NewConverter(table, display)
	points := make([]core.BalancePoint, 0, len(sorted))
	balance := 0.0
	for _, tx := range sorted {
		c := conv.ConvertTransaction(tx)
		balance += c.ConvertedAmount
		points = append(points, core.BalancePoint{
			Date:    tx.Date.Format(dateLayout),
			ID:      tx.ID,
			Amount:  c.ConvertedAmount,
			Balance: balance,
		})
	}
	return Series{Currency: display, Points: points}
}

// MonthlySummary summarizes the trailing window of months ending at now's
// month, oldest first. Every month of the window is present, including those
// without transactions. Amounts are rounded to the display currency.
func MonthlySummary(
	txs []core.Transaction,
	budgets map[core.MonthKey]core.BudgetRecord,
	table *rates.Table,
	display string,
	months int,
	now time.Time,
) []core.MonthSummary {
	if months <= 0 {
		return []core.MonthSummary{}
	}
	display = core.NormalizeCurrency(display)
	conv := rates.NewConverter(table, display)

	last := core.MonthOf(now)
	first := last.AddMonths(-(months - 1))
	index := make(map[core.MonthKey]int, months)
	out := make([]core.MonthSummary, months)
	for i := range out {
		m := first.AddMonths(i)
		out[i].Month = m
		index[m] = i
	}

	for _, tx := range txs {
		i, ok := index[core.MonthOf(tx.Date)]
		if !ok {
			continue
		}
		amount := conv.ConvertTransaction(tx).ConvertedAmount
		out[i].Net += amount
		if amount < 0 {
			out[i].Expense -= amount
		}
	}

	for i := range out {
		if b, ok := budgets[out[i].Month]; ok {
			out[i].Budget = conv.Convert(b.Amount, b.Currency)
		}
		out[i].OverBudget = out[i].Budget > 0 && out[i].Expense > out[i].Budget
		out[i].Net = core.Round(out[i].Net, display)
		out[i].Expense = core.Round(out[i].Expense, display)
		out[i].Budget = core.Round(out[i].Budget, display)
	}
	return out
}

// Input gathers what a dashboard is computed from.
type Input struct {
	Transactions []core.Transaction
	Budgets      map[core.MonthKey]core.BudgetRecord
	Table        *rates.Table
	// RatesAvailable is false when no usable table could ever be obtained.
	RatesAvailable bool
	Display        string
	Months         int
	Now            time.Time
}

// Report is the dashboard view. Numeric fields are omitted when rates are
// unavailable.
type Report struct {
	Currency         string              `json:"currency"`
	RatesUnavailable bool                `json:"rates_unavailable,omitempty"`
	Balance          *float64            `json:"balance,omitempty"`
	Series           *Series             `json:"series,omitempty"`
	Months           []core.MonthSummary `json:"months,omitempty"`
	Transactions     int                 `json:"transactions"`
}

// Dashboard composes the balance series and the monthly summary.
func Dashboard(in Input) Report {
	display := core.NormalizeCurrency(in.Display)
	r := Report{Currency: display, Transactions: len(in.Transactions)}
	if !in.RatesAvailable {
		r.RatesUnavailable = true
		return r
	}

	series := BalanceSeries(in.Transactions, in.Table, display)
	r.Series = &series
	if last, ok := series.Last(); ok {
		b := core.Round(last, display)
		r.Balance = &b
	}
	r.Months = MonthlySummary(in.Transactions, in.Budgets, in.Table, display, in.Months, in.Now)
	return r
}
