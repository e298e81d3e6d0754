package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateCurrency(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
	}{
		{"EUR", true},
		{"usd", true},
		{" pln ", true},
		{"US", false},
		{"USDE", false},
		{"US1", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidateCurrency(tc.code)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.code, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("%q expected ErrInvalidCurrency, got %v", tc.code, err)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("dkk") {
		t.Fatalf("expected dkk to be supported")
	}
	if IsSupported("JPY") {
		t.Fatalf("JPY is not in the supported set")
	}
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := m.AddMonths(-1); got != "2023-12" {
		t.Fatalf("AddMonths(-1) = %s, want 2023-12", got)
	}
	if got := m.AddMonths(13); got != "2025-02" {
		t.Fatalf("AddMonths(13) = %s, want 2025-02", got)
	}
	if got := MonthOf(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)); got != "2024-03" {
		t.Fatalf("MonthOf = %s, want 2024-03", got)
	}
	for _, bad := range []string{"2024-13", "2024/01", "", "24-01"} {
		if _, err := ParseMonthKey(bad); !errors.Is(err, ErrInvalidMonth) {
			t.Fatalf("%q expected ErrInvalidMonth, got %v", bad, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "salary",
		Amount:      1200,
		Currency:    "eur",
		Date:        time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noCurrency := good
	noCurrency.Currency = ""
	if err := noCurrency.Validate(); err != nil {
		t.Fatalf("currency is optional, got %v", err)
	}

	bads := []Transaction{
		{Description: "a", Amount: 1, Date: time.Time{}},
		{Description: " ", Amount: 1, Date: good.Date},
		{Description: "a", Amount: 0, Date: good.Date},
		{Description: "a", Amount: math.NaN(), Date: good.Date},
		{Description: "a", Amount: 1e308, Date: good.Date},
		{Description: "a", Amount: -MaxAmount * 2, Date: good.Date},
		{Description: "a", Amount: 1, Currency: "EURO", Date: good.Date},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestWithDefaultCurrency(t *testing.T) {
	tx := Transaction{Amount: 1}
	if got := tx.WithDefaultCurrency("pln").Currency; got != "PLN" {
		t.Fatalf("got %q, want PLN", got)
	}
	tx.Currency = "usd"
	if got := tx.WithDefaultCurrency("PLN").Currency; got != "USD" {
		t.Fatalf("got %q, want USD", got)
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (BudgetRecord{Amount: 0, Currency: "EUR"}).Validate(); err != nil {
		t.Fatalf("zero budget is allowed, got %v", err)
	}
	if err := (BudgetRecord{Amount: -1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (BudgetRecord{Amount: 1e308}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("huge budget: expected ErrInvalidAmount, got %v", err)
	}
}
