// Package csvio reads and writes transactions as CSV.
//
// Exports always use the column order date,description,amount,currency,category.
// Imports locate columns by header name, case-insensitively, so files from
// other tools with extra or reordered columns are accepted.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fxledger/internal/core"
)

// Header is the column order written by Export.
var Header = []string{"date", "description", "amount", "currency", "category"}

const (
	dateLayout         = "2006-01-02"
	defaultDescription = "Imported"
	defaultCategory    = "Imported"
)

// ErrNoAmountColumn is returned when the header has no amount column.
var ErrNoAmountColumn = errors.New("csv header has no amount column")

// ImportError reports a rejected row. Line is 1-based and counts the header.
type ImportError struct {
	Line int
	Err  error
}

func (e *ImportError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *ImportError) Unwrap() error { return e.Err }

// Options controls how imported rows are completed.
type Options struct {
	UserID string
	// Currency is used for rows without a currency.
	Currency string
	// Now provides the date of rows without one. Defaults to time.Now.
	Now func() time.Time
}

// Import parses transactions from r. Rows failing validation are reported in
// the returned ImportErrors while valid rows are still returned. The error is
// set only when the file as a whole cannot be read.
func Import(r io.Reader, opts Options) ([]core.Transaction, []*ImportError, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(head)
	if _, ok := cols["amount"]; !ok {
		return nil, nil, ErrNoAmountColumn
	}

	var (
		out []core.Transaction
		bad []*ImportError
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				bad = append(bad, &ImportError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return out, bad, fmt.Errorf("read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		tx, err := parseRow(rec, cols, opts)
		if err != nil {
			bad = append(bad, &ImportError{Line: line, Err: err})
			continue
		}
		out = append(out, tx)
	}
	return out, bad, nil
}

func indexColumns(head []string) map[string]int {
	cols := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func parseRow(rec []string, cols map[string]int, opts Options) (core.Transaction, error) {
	cell := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok {
			return "", false
		}
		if i >= len(rec) {
			return "", true
		}
		return strings.TrimSpace(rec[i]), true
	}

	tx := core.Transaction{UserID: opts.UserID}

	amount, _ := cell("amount")
	a, err := core.ParseAmount(amount)
	if err != nil {
		return tx, fmt.Errorf("amount %q: %w", amount, err)
	}
	tx.Amount = a

	if d, _ := cell("date"); d != "" {
		if tx.Date, err = parseDate(d); err != nil {
			return tx, err
		}
	} else {
		now := opts.Now()
		tx.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	tx.Description, _ = cell("description")
	if tx.Description == "" {
		tx.Description = defaultDescription
	}

	if c, present := cell("category"); present {
		tx.Category = c
	} else {
		tx.Category = defaultCategory
	}

	tx.Currency, _ = cell("currency")
	if tx.Currency == "" {
		tx.Currency = opts.Currency
	}
	tx.Currency = core.NormalizeCurrency(tx.Currency)
	if tx.Currency != "" && !core.KnownCurrency(tx.Currency) {
		return tx, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, tx.Currency)
	}

	return tx, tx.Validate()
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Export writes txs with a header row.
func Export(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, tx := range txs {
		row := []string{
			tx.Date.Format(dateLayout),
			tx.Description,
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			tx.Currency,
			tx.Category,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
