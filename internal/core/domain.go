package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Currencies supported by the rate providers and the built-in fallback table.
var SupportedCurrencies = []string{"PLN", "USD", "EUR", "DKK", "GBP"}

const monthKeyLayout = "2006-01"

type (
	// MonthKey identifies a calendar month as YYYY-MM.
	MonthKey string

	Transaction struct {
		ID          string    `json:"id"`
		UserID      string    `json:"-"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`             // positive = income, negative = expense
		Currency    string    `json:"currency,omitempty"` // empty means "display currency"
		Date        time.Time `json:"date"`
		Category    string    `json:"category,omitempty"`
	}

	BudgetRecord struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency,omitempty"`
	}

	// ConvertedTransaction is a transaction with its amount expressed in the
	// display currency. It is recomputed on every aggregation and never stored.
	ConvertedTransaction struct {
		Transaction
		ConvertedAmount float64 `json:"converted_amount"`
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
)

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks that code is made of exactly three ASCII letters.
// The check is case-insensitive.
func ValidateCurrency(code string) error {
	code = NormalizeCurrency(code)
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// IsSupported reports whether code is one of SupportedCurrencies.
func IsSupported(code string) bool {
	code = NormalizeCurrency(code)
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// MonthOf returns the month key of t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// ParseMonthKey parses a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthKeyLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// Start returns the first instant of the month in UTC.
func (m MonthKey) Start() time.Time {
	t, err := time.Parse(monthKeyLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddMonths returns the key n months after m (n may be negative).
func (m MonthKey) AddMonths(n int) MonthKey {
	return MonthOf(m.Start().AddDate(0, n, 0))
}

func (m MonthKey) String() string { return string(m) }

// Validate checks the fields a stored transaction must carry.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLong
	}
	if t.Amount == 0 || !finite(t.Amount) || math.Abs(t.Amount) > MaxAmount {
		return ErrInvalidAmount
	}
	if t.Currency != "" {
		if err := ValidateCurrency(t.Currency); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaultCurrency returns a copy of t whose currency is set to def when
// missing. The currency is always upper-cased.
func (t Transaction) WithDefaultCurrency(def string) Transaction {
	if strings.TrimSpace(t.Currency) == "" {
		t.Currency = def
	}
	t.Currency = NormalizeCurrency(t.Currency)
	return t
}

func (b BudgetRecord) Validate() error {
	if b.Amount < 0 || !finite(b.Amount) || b.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	if b.Currency != "" {
		if err := ValidateCurrency(b.Currency); err != nil {
			return err
		}
	}
	return nil
}
