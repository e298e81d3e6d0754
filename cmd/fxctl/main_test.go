package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/aggregate"
	"fxledger/internal/core"
	"fxledger/internal/rates"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertOffline(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"convert", "100", "EUR", "USD", "--offline"}, "€100.00 = $110.00\n"},
		{[]string{"convert", "110", "usd", "pln", "--offline"}, "= 460"},
		{[]string{"convert", "12,5", "EUR", "EUR", "--offline"}, "€12.50 = €12.50\n"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestConvertRejectsBadInput(t *testing.T) {
	_, err := run(t, "convert", "abc", "EUR", "USD", "--offline")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, "convert", "1", "EURO", "USD", "--offline")
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)

	_, err = run(t, "convert", "1", "EUR")
	assert.Error(t, err)
}

func TestPrintTable(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, printTable(cmd, rates.Fallback("EUR"), "built-in"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "provider: built-in")
	assert.True(t, strings.HasPrefix(lines[1], "DKK"))
	assert.Contains(t, out.String(), "1.100000")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	balance := 154.55
	require.NoError(t, printReport(cmd, aggregate.Report{
		Currency: "EUR",
		Balance:  &balance,
		Months: []core.MonthSummary{
			{Month: "2024-02", Net: 0},
			{Month: "2024-03", Net: 154.55, Expense: 45.45, Budget: 40, OverBudget: true},
		},
		Transactions: 2,
	}))
	s := out.String()
	assert.Contains(t, s, "2024-03")
	assert.Contains(t, s, "over")
	assert.Contains(t, s, "balance: €154.55 (2 transactions)")

	out.Reset()
	require.NoError(t, printReport(cmd, aggregate.Report{Currency: "PLN", RatesUnavailable: true, Transactions: 3}))
	assert.Contains(t, out.String(), "rates for PLN are unavailable")
}
