package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"7.5", 18, "7500000000000000000"},
		{"0.01", 18, "10000000000000000"},
		{"100", 6, "100000000"},
		{"0", 18, "0"},
		{".5", 2, "50"},
		{"2.5", 6, "2500000"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseUnitsRejects(t *testing.T) {
	for _, in := range []string{"", "-1", "1.2345678", "abc", "1.2.3"} {
		_, err := ParseUnits(in, 6)
		assert.Error(t, err, in)
	}
}

func TestFormatUnits(t *testing.T) {
	wei := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		return v
	}

	assert.Equal(t, "7.5", FormatUnits(wei("7500000000000000000"), 18))
	assert.Equal(t, "0.01", FormatUnits(wei("10000000000000000"), 18))
	assert.Equal(t, "100", FormatUnits(wei("100000000"), 6))
	assert.Equal(t, "0", FormatUnits(wei("0"), 18))
	assert.Equal(t, "-2.5", FormatUnits(wei("-2500000"), 6))
	assert.Equal(t, "42", FormatUnits(wei("42"), 0))
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"7.5", "0.01", "123.456789", "1000000"} {
		v, err := ParseUnits(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(v, 18))
	}
}

func TestFloatText(t *testing.T) {
	assert.Equal(t, "7.5", FloatText(7.5))
	assert.Equal(t, "0.01", FloatText(0.01))
	assert.Equal(t, "100", FloatText(100))
}
