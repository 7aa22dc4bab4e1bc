package adapters

import (
	"fmt"
	"strconv"
	"strings"
)

// MinorToDecimal renders a minor-unit amount as a two-decimal string, the
// format the redirect gateways expect ("1234" -> "12.34").
func MinorToDecimal(minor int64) string {
	negative := minor < 0
	if negative {
		minor = -minor
	}
	out := fmt.Sprintf("%d.%02d", minor/100, minor%100)
	if negative {
		return "-" + out
	}
	return out
}

// DecimalToMinor parses a gateway decimal string into minor units, tolerating
// missing or short fractional parts ("12.3" -> 1230). Amounts carrying
// sub-cent precision are rejected rather than rounded, so a mismatched
// gateway amount surfaces as an error instead of a silently shrunk deposit.
func DecimalToMinor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(value, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if len(frac) > 2 {
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("amount %q has sub-cent precision", value)
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if units < 0 || strings.HasPrefix(whole, "-") {
		return units*100 - cents, nil
	}
	return units*100 + cents, nil
}
