package core

import (
	"math"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1.23", 1.23, true},
		{"1,23", 1.23, true},
		{"-50", -50, true},
		{"+7.5", 7.5, true},
		{" 2.50 ", 2.5, true},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"--1", 0, false},
		{"1e3", 0, false},
		{"1000000000000", 1e12, true},
		{"1000000000000.01", 0, false},
		{"1" + strings.Repeat("0", 309), 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		in       float64
		currency string
		out      float64
	}{
		{45.454545, "EUR", 45.45},
		{-45.455, "EUR", -45.46},
		{154.5454, "usd", 154.55},
		{12.5, "JPY", 13},
	}
	for _, tc := range cases {
		if got := Round(tc.in, tc.currency); got != tc.out {
			t.Fatalf("Round(%v, %s) = %v, want %v", tc.in, tc.currency, got, tc.out)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(12.34, "USD"); got != "$12.34" {
		t.Fatalf("Format USD = %q", got)
	}
	if got := Format(3, "ZZZ"); !strings.HasSuffix(got, "ZZZ") {
		t.Fatalf("unknown currency should carry its code, got %q", got)
	}
}

func TestRoundAndFormat_NonFinite(t *testing.T) {
	inf := math.Inf(1)
	if got := Round(inf, "DKK"); !math.IsInf(got, 1) {
		t.Fatalf("Round(+Inf) = %v, want +Inf", got)
	}
	if got := Round(math.NaN(), "EUR"); !math.IsNaN(got) {
		t.Fatalf("Round(NaN) = %v, want NaN", got)
	}
	if got := Format(math.Inf(-1), "eur"); got != "-Inf EUR" {
		t.Fatalf("Format(-Inf) = %q", got)
	}
}
