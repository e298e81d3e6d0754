package rates

import "fxledger/internal/core"

// AnchorCurrency is the base of the built-in table.
const AnchorCurrency = "EUR"

// builtin rates relative to EUR, used when no provider answers.
var builtin = map[string]float64{
	"EUR": 1,
	"USD": 1.1,
	"PLN": 4.6,
	"DKK": 7.44,
	"GBP": 0.86,
}

// Defaults returns a copy of the built-in EUR-based table.
func Defaults() Table {
	t := Table{Base: AnchorCurrency, Rates: make(map[string]float64, len(builtin))}
	for k, v := range builtin {
		t.Rates[k] = v
	}
	return t
}

// Fallback returns the built-in table rebased to base. The result always
// contains base with rate 1 and every built-in currency.
func Fallback(base string) Table {
	base = core.NormalizeCurrency(base)
	t := Defaults().Rebase(base)
	if _, ok := t.Rates[base]; !ok {
		t.Rates[base] = 1
		t.Assumed = true
	}
	return t
}

func builtinRate(code string) (float64, bool) {
	v, ok := builtin[code]
	return v, ok
}
