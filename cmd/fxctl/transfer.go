package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var user, currency string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import transactions from a CSV file",
		Long: `Import transactions from a CSV file with a header row. Rows without a
currency take --currency, or the default currency. Invalid rows are
reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := loadApp()
			if err != nil {
				return err
			}
			svc, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Import(cmd.Context(), user, f, currency)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rowErr := range res.Errors {
				fmt.Fprintf(out, "skipped %v\n", rowErr)
			}
			fmt.Fprintf(out, "imported %d transactions, skipped %d\n", res.Imported, len(res.Errors))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "anonymous", "owner of the imported transactions")
	cmd.Flags().StringVar(&currency, "currency", "", "currency of rows without one")
	return cmd
}

func exportCmd() *cobra.Command {
	var user, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's transactions as CSV",
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

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return svc.Export(cmd.Context(), user, w)
		},
	}

	cmd.Flags().StringVar(&user, "user", "anonymous", "owner of the transactions")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
