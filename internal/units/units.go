package units

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits converts a base-unit integer to its full decimal string, without trimming
// precision. Trailing fractional zeros are removed.
//
//	amount=1500000000000000000, decimals=18 -> "1.5"
//	amount=1, decimals=18 -> "0.000000000000000001"
func FormatUnits(amount *big.Int, decimals uint8) string {
	return FormatUnitsTrim(amount, decimals, int(decimals))
}

// FormatUnitsTrim converts a token balance to a human string:
// - divides by 10^decimals
// - trims to maxFrac decimal places
// - removes trailing zeros
//
// Examples:
//
//	balance=1234500000000000000, decimals=18 -> "1.2345"
//	balance=1000000000000000000, decimals=18 -> "1"
//	balance=1, decimals=18 -> "0.000000000000000001"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	base := pow10(decimals)
	intPart := new(big.Int).Div(abs, base)
	fracPart := new(big.Int).Mod(abs, base)

	if fracPart.Sign() == 0 || maxFrac <= 0 {
		return sign + intPart.String()
	}

	// Left-pad fractional part to `decimals`
	fracStr := fracPart.String()
	if len(fracStr) < int(decimals) {
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	}

	if len(fracStr) > maxFrac {
		fracStr = fracStr[:maxFrac]
	}

	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return sign + intPart.String()
	}

	return sign + intPart.String() + "." + fracStr
}

// ParseUnits converts a human decimal string ("100", "0.25") into base units.
// Negative values, exponents and more fractional digits than decimals are rejected.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	value = strings.TrimPrefix(value, "+")

	intStr, fracStr, hasDot := strings.Cut(value, ".")
	if hasDot && intStr == "" && fracStr == "" {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if intStr == "" {
		intStr = "0"
	}
	if !isDigits(intStr) || (fracStr != "" && !isDigits(fracStr)) {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if len(fracStr) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", value, decimals)
	}

	fracStr += strings.Repeat("0", int(decimals)-len(fracStr))

	out, ok := new(big.Int).SetString(intStr+fracStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return out, nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
