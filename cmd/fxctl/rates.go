package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fxledger/internal/core"
	"fxledger/internal/rates"
)

func ratesCmd() *cobra.Command {
	var fallback bool

	cmd := &cobra.Command{
		Use:   "rates <base>",
		Short: "Show the current rates relative to a base currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := core.NormalizeCurrency(args[0])
			if err := core.ValidateCurrency(base); err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}

			res := a.source().FetchResult(cmd.Context(), base)
			provider := res.Provider
			var table rates.Table
			switch {
			case res.OK():
				table = res.Table.Rebase(base)
			case fallback:
				a.logger.Warn("Providers failed, showing built-in rates", "error", res.Err)
				table, provider = rates.Fallback(base), "built-in"
			default:
				return res.Err
			}
			return printTable(cmd, table, provider)
		},
	}

	cmd.Flags().BoolVar(&fallback, "fallback", false, "show the built-in table when every provider fails")
	return cmd
}

func printTable(cmd *cobra.Command, table rates.Table, provider string) error {
	codes := table.Currencies()
	sort.Strings(codes)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "base\t%s\tprovider: %s\n", table.Base, provider)
	for _, code := range codes {
		v, _ := table.Rate(code)
		fmt.Fprintf(w, "%s\t%.6f\n", code, v)
	}
	return w.Flush()
}
