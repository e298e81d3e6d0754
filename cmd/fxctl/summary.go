package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fxledger/internal/aggregate"
	"fxledger/internal/core"
)

func summaryCmd() *cobra.Command {
	var (
		user     string
		currency string
		months   int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the monthly summary and balance of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			svc, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.Dashboard(cmd.Context(), user, currency, months)
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	}

	cmd.Flags().StringVar(&user, "user", "anonymous", "user to summarize")
	cmd.Flags().StringVar(&currency, "currency", "", "display currency (default: configured default)")
	cmd.Flags().IntVar(&months, "months", 6, "number of months up to the current one")
	return cmd
}

func printReport(cmd *cobra.Command, report aggregate.Report) error {
	out := cmd.OutOrStdout()
	if report.RatesUnavailable {
		_, err := fmt.Fprintf(out, "rates for %s are unavailable, %d transactions not summarized\n",
			report.Currency, report.Transactions)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "month\tnet\texpense\tbudget\t\t")
	for _, m := range report.Months {
		flag := ""
		if m.OverBudget {
			flag = "over"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", m.Month,
			core.Format(m.Net, report.Currency),
			core.Format(m.Expense, report.Currency),
			core.Format(m.Budget, report.Currency),
			flag)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if report.Balance != nil {
		_, err := fmt.Fprintf(out, "balance: %s (%d transactions)\n", core.Format(*report.Balance, report.Currency), report.Transactions)
		return err
	}
	return nil
}
