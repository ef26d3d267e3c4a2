package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBigInt converts a raw integer amount to a human-readable decimal string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(amountFloat, divisor)

	formatted := value.Text('f', int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if strings.HasPrefix(formatted, ".") {
		formatted = "0" + formatted
	}
	if formatted == "" {
		if amount.Sign() == 0 {
			return "0", nil
		}
		return value.Text('f', 2), fmt.Errorf("formatting resulted in empty string for non-zero value")
	}
	return formatted, nil
}

// ParseUnits converts a decimal string in the asset's display unit into a raw
// integer in the smallest unit, scaling by 10^decimals.
// Example: ParseUnits("1.5", 18) => 1500000000000000000.
// The value must be a plain positive decimal; more fractional digits than the
// asset supports are rejected rather than silently truncated.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		return nil, fmt.Errorf("amount must be an unsigned decimal, got %q", value)
	}

	whole := value
	frac := ""
	if i := strings.IndexByte(value, '.'); i >= 0 {
		whole, frac = value[:i], value[i+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, fmt.Errorf("invalid decimal %q", value)
		}
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid decimal %q", value)
	}
	if whole == "" {
		whole = "0"
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid decimal %q", value)
		}
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", value, decimals)
	}

	// Pad the fractional part out to the full precision and join.
	frac += strings.Repeat("0", int(decimals)-len(frac))
	raw, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount %q", value)
	}
	return raw, nil
}

// IsPositiveDecimal reports whether value parses as a decimal number greater
// than zero, ignoring how many fractional digits it carries.
func IsPositiveDecimal(value string) bool {
	f, ok := new(big.Float).SetString(strings.TrimSpace(value))
	return ok && f.Sign() > 0
}

// FormatFixed renders a decimal string with exactly places fractional digits,
// rounding. Values that do not parse are returned unchanged.
func FormatFixed(value string, places int) string {
	f, ok := new(big.Float).SetString(strings.TrimSpace(value))
	if !ok {
		return value
	}
	return f.Text('f', places)
}
