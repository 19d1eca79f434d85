package money_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/pkg/money"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int
		want     string
	}{
		{name: "whole", input: "100", decimals: 18, want: "100000000000000000000"},
		{name: "fraction", input: "1.5", decimals: 18, want: "1500000000000000000"},
		{name: "no integer part", input: ".5", decimals: 8, want: "50000000"},
		{name: "trailing dot", input: "2.", decimals: 2, want: "200"},
		{name: "smallest unit", input: "0.000000000000000001", decimals: 18, want: "1"},
		{name: "leading zeros", input: "007.25", decimals: 2, want: "725"},
		{name: "zero", input: "0", decimals: 18, want: "0"},
		{name: "zero with decimals", input: "0.000", decimals: 18, want: "0"},
		{name: "trailing zeros beyond precision", input: "1.2500", decimals: 2, want: "125"},
		{name: "zero decimals", input: "42", decimals: 0, want: "42"},
		{name: "spaces", input: " 3 ", decimals: 1, want: "30"},
		{name: "huge", input: "123456789012345678901234567890.123456789012345678", decimals: 18, want: "123456789012345678901234567890123456789012345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.ParseUnits(tt.input, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnits_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "", want: money.ErrEmptyAmount},
		{name: "blank", input: "   ", want: money.ErrEmptyAmount},
		{name: "dot only", input: ".", want: money.ErrInvalidAmount},
		{name: "negative", input: "-1", want: money.ErrInvalidAmount},
		{name: "letters", input: "1a", want: money.ErrInvalidAmount},
		{name: "two dots", input: "1.2.3", want: money.ErrInvalidAmount},
		{name: "exponent", input: "1e18", want: money.ErrInvalidAmount},
		{name: "too precise", input: "0.123", want: money.ErrTooPrecise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := money.ParseUnits(tt.input, 2)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{name: "nil", amount: nil, decimals: 18, want: "0"},
		{name: "zero", amount: big.NewInt(0), decimals: 18, want: "0"},
		{name: "fraction", amount: big.NewInt(150000000), decimals: 8, want: "1.5"},
		{name: "whole", amount: big.NewInt(200000000), decimals: 8, want: "2"},
		{name: "below one", amount: big.NewInt(5), decimals: 3, want: "0.005"},
		{name: "exactly decimals long", amount: big.NewInt(125), decimals: 3, want: "0.125"},
		{name: "zero decimals", amount: big.NewInt(42), decimals: 0, want: "42"},
		{name: "negative", amount: big.NewInt(-150), decimals: 2, want: "-1.5"},
		{name: "wei", amount: mustBig(t, "1000000000000000000000"), decimals: 18, want: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, money.FormatUnits(tt.amount, tt.decimals))
		})
	}
}

func TestFormatUnitsFixed(t *testing.T) {
	amount := mustBig(t, "1234567890000000000")

	assert.Equal(t, "1.2345", money.FormatUnitsFixed(amount, 18, 4))
	assert.Equal(t, "1", money.FormatUnitsFixed(amount, 18, 0))
	assert.Equal(t, "1.23456789", money.FormatUnitsFixed(amount, 18, 18))
	assert.Equal(t, "0", money.FormatUnitsFixed(big.NewInt(1), 18, 2))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1.5", "0.000000000000000001", "98765.4321"} {
		v, err := money.ParseUnits(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, money.FormatUnits(v, 18))
	}
}
