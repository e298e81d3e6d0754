package rates

import "fxledger/internal/core"

// Convert converts amount from one currency to another through table.
//
// An empty from means the table's base (or to, when table is nil). A nil
// table means the built-in rates. Codes missing from table fall back to the
// built-in rates and then to 1, so Convert never fails.
func Convert(amount float64, from, to string, table *Table) float64 {
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	if from == "" {
		if table != nil && table.Base != "" {
			from = table.Base
		} else {
			from = to
		}
	}
	if from == to || to == "" {
		return amount
	}
	return amount / lookup(table, from) * lookup(table, to)
}

func lookup(table *Table, code string) float64 {
	if table != nil {
		if v, ok := table.Rates[code]; ok && usable(v) {
			return v
		}
	}
	if v, ok := builtinRate(code); ok {
		return v
	}
	return 1
}

// Converter binds a table and a display currency.
type Converter struct {
	table   *Table
	display string
}

// NewConverter returns a Converter into display using table (nil for built-ins).
func NewConverter(table *Table, display string) Converter {
	return Converter{table: table, display: core.NormalizeCurrency(display)}
}

// Display returns the target currency.
func (c Converter) Display() string { return c.display }

// Convert converts amount from currency into the display currency.
func (c Converter) Convert(amount float64, currency string) float64 {
	if currency == "" {
		currency = c.display
	}
	return Convert(amount, currency, c.display, c.table)
}

// ConvertTransaction expresses tx in the display currency. A transaction
// without currency is taken to already be in the display currency.
func (c Converter) ConvertTransaction(tx core.Transaction) core.ConvertedTransaction {
	tx = tx.WithDefaultCurrency(c.display)
	return core.ConvertedTransaction{
		Transaction:     tx,
		ConvertedAmount: Convert(tx.Amount, tx.Currency, c.display, c.table),
	}
}
