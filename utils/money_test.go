package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnitExponent(t *testing.T) {
	assert.Equal(t, int32(2), MinorUnitExponent("EUR"))
	assert.Equal(t, int32(2), MinorUnitExponent("usd"))
	assert.Equal(t, int32(0), MinorUnitExponent("JPY"))
	assert.Equal(t, int32(0), MinorUnitExponent(" dzd "))
	assert.Equal(t, int32(3), MinorUnitExponent("KWD"))
	assert.Equal(t, int32(2), MinorUnitExponent("XYZ"))
}

func TestRoundMoneyHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		want     string
	}{
		{"10.005", "EUR", "10.01"},
		{"10.004", "EUR", "10"},
		{"-10.005", "EUR", "-10.01"},
		{"2.5", "JPY", "3"},
		{"1.0005", "KWD", "1.001"},
	}
	for _, tc := range cases {
		got := RoundMoney(decimal.RequireFromString(tc.in), tc.currency)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s %s => %s", tc.in, tc.currency, got)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "46080.00", FormatAmount(decimal.NewFromInt(46080), "EUR"))
	assert.Equal(t, "1500", FormatAmount(decimal.NewFromInt(1500), "JPY"))
}

func TestGenerateReferenceCode(t *testing.T) {
	code := GenerateReferenceCode(10)
	assert.Len(t, code, 10)
	for _, r := range code {
		assert.Contains(t, upperCode, string(r))
	}
}
