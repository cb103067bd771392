package chain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ParseUnits converts a decimal string like "7.5" into raw token units with
// the given number of decimals. Fractional digits beyond the token's
// precision are rejected rather than silently truncated.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("chain: empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		return nil, fmt.Errorf("chain: negative amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("chain: amount %q exceeds %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("chain: invalid amount %q", s)
	}
	return out, nil
}

// FormatUnits renders raw token units as a decimal string, trimming trailing
// fractional zeros.
func FormatUnits(x *big.Int, decimals uint8) string {
	if x == nil {
		return "0"
	}
	s := x.String()
	if decimals == 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	cut := len(s) - int(decimals)
	whole, frac := s[:cut], s[cut:]
	frac = strings.TrimRight(frac, "0")
	out := whole
	if frac != "" {
		out = whole + "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FloatText renders a float the way amounts arrive in request bodies,
// suitable for ParseUnits.
func FloatText(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
