package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fxledger/internal/core"
	"fxledger/internal/rates"
)

func convertCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "convert <amount> <from> <to>",
		Short: "Convert an amount between currencies",
		Long: `Convert an amount with the live rates of the configured providers, or
with the built-in table when --offline is set or every provider fails.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDecimal(args[0])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[0], err)
			}
			amount := d.InexactFloat64()
			from, to := core.NormalizeCurrency(args[1]), core.NormalizeCurrency(args[2])
			for _, code := range []string{from, to} {
				if err := core.ValidateCurrency(code); err != nil {
					return err
				}
			}

			var table rates.Table
			if offline {
				table = rates.Fallback(from)
			} else {
				a, err := loadApp()
				if err != nil {
					return err
				}
				table = a.source().Fetch(cmd.Context(), from)
			}

			result := rates.Convert(amount, from, to, &table)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", core.Format(amount, from), core.Format(result, to))
			return err
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "use the built-in rate table")
	return cmd
}
