package rates

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DeclaredBaseIsRebased(t *testing.T) {
	raw := RawTable{"base": "eur", "eur": 1, "usd": 1.1, "pln": 4.6}

	table, err := Normalize(raw, "usd")
	require.NoError(t, err)

	assert.Equal(t, "USD", table.Base)
	assert.False(t, table.Assumed)
	assert.InDelta(t, 1.0, table.Rates["USD"], 1e-12)
	assert.InDelta(t, 1/1.1, table.Rates["EUR"], 1e-12)
	assert.InDelta(t, 4.6/1.1, table.Rates["PLN"], 1e-12)
}

func TestNormalize_NoBaseKeepsValues(t *testing.T) {
	table, err := Normalize(RawTable{"USD": 1.1, "PLN": 4.6}, "EUR")
	require.NoError(t, err)

	assert.Equal(t, "EUR", table.Base)
	assert.Equal(t, 1.0, table.Rates["EUR"])
	assert.Equal(t, 1.1, table.Rates["USD"])
	assert.True(t, table.Assumed, "target was not in the table")

	table, err = Normalize(RawTable{"EUR": 1, "USD": 1.1}, "EUR")
	require.NoError(t, err)
	assert.False(t, table.Assumed)
}

func TestNormalize_DeclaredBaseWithoutTarget(t *testing.T) {
	table, err := Normalize(RawTable{"base": "EUR", "EUR": 2, "USD": 2.2}, "JPY")
	require.NoError(t, err)

	// divisor falls back to the declared base
	assert.Equal(t, "JPY", table.Base)
	assert.InDelta(t, 1.0, table.Rates["EUR"], 1e-12)
	assert.InDelta(t, 1.1, table.Rates["USD"], 1e-12)
	assert.True(t, table.Assumed)
}

func TestNormalize_CoercesValues(t *testing.T) {
	raw := RawTable{
		"EUR": json.Number("1"),
		"USD": "1.1",
		"PLN": decimal.RequireFromString("4.6"),
		"DKK": int64(7),
		"GBP": nil,
	}
	table, err := Normalize(raw, "EUR")
	require.NoError(t, err)

	assert.Equal(t, 1.1, table.Rates["USD"])
	assert.Equal(t, 4.6, table.Rates["PLN"])
	assert.Equal(t, 7.0, table.Rates["DKK"])
	_, ok := table.Rates["GBP"]
	assert.False(t, ok, "null entries are dropped")
}

func TestNormalize_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		raw  RawTable
	}{
		{"text", RawTable{"USD": "abc"}},
		{"negative", RawTable{"USD": -1.0}},
		{"zero", RawTable{"USD": 0}},
		{"object", RawTable{"USD": map[string]any{}}},
		{"bool", RawTable{"USD": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, "EUR")
			require.ErrorIs(t, err, ErrInvalidRateValue)
			assert.Contains(t, err.Error(), "USD")
		})
	}
}

func TestRebase_DoesNotMutate(t *testing.T) {
	orig := Defaults()
	rebased := orig.Rebase("PLN")

	assert.Equal(t, "EUR", orig.Base)
	assert.Equal(t, 4.6, orig.Rates["PLN"])
	assert.Equal(t, "PLN", rebased.Base)
	assert.InDelta(t, 1.0, rebased.Rates["PLN"], 1e-12)
}

func TestRebase_RoundTripIsEquivalent(t *testing.T) {
	orig := Defaults()
	for _, base := range []string{"USD", "PLN", "DKK", "GBP"} {
		back := orig.Rebase(base).Rebase("EUR")
		assert.True(t, Equivalent(orig, back, 1e-9), base)
		for code, v := range orig.Rates {
			assert.InEpsilon(t, v, back.Rates[code], 1e-9, "%s via %s", code, base)
		}
	}
}

func TestEquivalent(t *testing.T) {
	a := Defaults()
	b := a.Rebase("USD")
	assert.True(t, Equivalent(a, b, 1e-9))

	c := Defaults()
	c.Rates["PLN"] = 5
	assert.False(t, Equivalent(a, c, 1e-9))

	assert.False(t, Equivalent(a, Table{Base: "JPY", Rates: map[string]float64{"JPY": 1}}, 1e-9))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Fallback("PLN").Validate("PLN"))

	err := Table{Base: "PLN", Rates: map[string]float64{"PLN": 1}}.Validate("PLN")
	require.ErrorIs(t, err, ErrIncompleteRateTable)

	err = Table{Base: "EUR", Rates: map[string]float64{"USD": 1.1}}.Validate("PLN")
	require.ErrorIs(t, err, ErrIncompleteRateTable)
}

func TestFallback(t *testing.T) {
	for _, base := range []string{"EUR", "usd", "PLN", "JPY"} {
		table := Fallback(base)
		require.NotEmpty(t, table.Rates)
		assert.Equal(t, 1.0, table.Rates[table.Base], base)
		for code := range builtin {
			assert.Contains(t, table.Rates, code, base)
		}
	}
	assert.InDelta(t, 1/1.1, Fallback("USD").Rates["EUR"], 1e-12)
}
