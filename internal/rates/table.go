// Package rates implements exchange-rate tables, conversion between
// currencies, fetching rates from upstream providers and coordinating
// overlapping fetches so that only the latest request is ever applied.
package rates

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fxledger/internal/core"
)

var (
	// ErrInvalidRateValue is returned when a rate entry is not a finite positive number.
	ErrInvalidRateValue = errors.New("invalid rate value")
	// ErrIncompleteRateTable marks a fetched table lacking the display base or a second currency.
	ErrIncompleteRateTable = errors.New("incomplete rate table")
	// ErrRateFetchFailed marks a provider failure. It never escapes Source.Fetch.
	ErrRateFetchFailed = errors.New("rate fetch failed")
	// ErrStaleResult marks a fetch result superseded by a newer request.
	ErrStaleResult = errors.New("stale rate result")
)

// Table holds exchange rates relative to Base: Rates[X] is how many units of
// X equal one unit of Base. A Table is treated as immutable once built.
type Table struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
	// Assumed is set when the table had no reliable scale for Base and a 1:1
	// relation was assumed during normalization.
	Assumed bool `json:"assumed,omitempty"`
}

// RawTable is a loosely typed rate table as decoded from JSON. It may carry a
// "base" entry naming the currency its values are relative to.
type RawTable map[string]any

// Normalize upper-cases and coerces every entry of raw and rebases the result
// to target.
func Normalize(raw RawTable, target string) (Table, error) {
	values := make(map[string]float64, len(raw))
	declared := ""
	for k, v := range raw {
		if strings.EqualFold(k, "base") {
			if s, ok := v.(string); ok {
				declared = core.NormalizeCurrency(s)
			}
			continue
		}
		if v == nil {
			// providers report unknown symbols as null
			continue
		}
		code := core.NormalizeCurrency(k)
		f, err := coerce(v)
		if err != nil {
			return Table{}, fmt.Errorf("%w: %s=%v", ErrInvalidRateValue, code, v)
		}
		values[code] = f
	}
	return rebase(values, declared, core.NormalizeCurrency(target)), nil
}

// rebase takes ownership of values.
func rebase(values map[string]float64, declared, target string) Table {
	assumed := false
	switch {
	case declared != "" && declared != target:
		divisor, ok := values[target]
		if !ok {
			assumed = true
			if divisor, ok = values[declared]; !ok {
				divisor = 1
			}
		}
		for k := range values {
			values[k] /= divisor
		}
	default:
		if _, ok := values[target]; !ok {
			values[target] = 1
			assumed = declared == ""
		}
	}
	return Table{Base: target, Rates: values, Assumed: assumed}
}

// Rebase returns a copy of t expressed relative to target.
func (t Table) Rebase(target string) Table {
	out := rebase(t.clone(), t.Base, core.NormalizeCurrency(target))
	out.Assumed = out.Assumed || t.Assumed
	return out
}

// Rate returns the rate of code, if present.
func (t Table) Rate(code string) (float64, bool) {
	v, ok := t.Rates[core.NormalizeCurrency(code)]
	return v, ok
}

// Currencies returns the codes present in t, sorted.
func (t Table) Currencies() []string {
	out := make([]string, 0, len(t.Rates))
	for k := range t.Rates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsZero reports whether t holds no rates at all.
func (t Table) IsZero() bool { return len(t.Rates) == 0 }

func (t Table) clone() map[string]float64 {
	out := make(map[string]float64, len(t.Rates))
	for k, v := range t.Rates {
		out[k] = v
	}
	return out
}

// Validate checks that base is present and that at least one other supported
// currency is present, all as finite positive numbers.
func (t Table) Validate(base string) error {
	base = core.NormalizeCurrency(base)
	if v, ok := t.Rates[base]; !ok || !usable(v) {
		return fmt.Errorf("%w: missing base %s", ErrIncompleteRateTable, base)
	}
	for _, c := range core.SupportedCurrencies {
		if c == base {
			continue
		}
		if v, ok := t.Rates[c]; ok && usable(v) {
			return nil
		}
	}
	return fmt.Errorf("%w: no supported currency besides %s", ErrIncompleteRateTable, base)
}

// Equivalent reports whether a and b agree on every shared currency once both
// are expressed relative to a common base, within relative tolerance tol.
func Equivalent(a, b Table, tol float64) bool {
	common := ""
	for _, c := range a.Currencies() {
		if _, ok := b.Rates[c]; ok {
			common = c
			break
		}
	}
	if common == "" {
		return false
	}
	ra, rb := a.Rebase(common), b.Rebase(common)
	for c, va := range ra.Rates {
		vb, ok := rb.Rates[c]
		if !ok {
			continue
		}
		if math.Abs(va-vb) > tol*math.Max(math.Abs(va), math.Abs(vb)) {
			return false
		}
	}
	return true
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func coerce(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, err
		}
	case decimal.Decimal:
		f = x.InexactFloat64()
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if !usable(f) {
		return 0, fmt.Errorf("not a finite positive number")
	}
	return f, nil
}
