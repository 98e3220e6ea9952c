package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/safeops/sweep/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a human decimal amount ("1.5") into an integer string
// in the asset's smallest unit. The amount must be positive.
func ToBaseUnits(decimal string, decimals int) (string, error) {
	raw := strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(raw) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("amount must be in decimal form like 1.23, got %q", decimal))
	}
	if decimals < 0 {
		return "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}

	parts := strings.SplitN(raw, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}

	combined := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return "", clierr.New(clierr.CodeUsage, "amount must be positive")
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}

// FormatBaseUnits converts an integer base-unit string into a human decimal
// string using the asset's declared precision.
func FormatBaseUnits(baseUnits string, decimals int) string {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimSpace(baseUnits), 10); !ok {
		return "0"
	}
	return FormatBig(n, decimals)
}

// FormatBig renders a base-unit big.Int in human units, trimming trailing
// zeros from the fractional part.
func FormatBig(n *big.Int, decimals int) string {
	if decimals <= 0 {
		return n.String()
	}
	s := n.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if fracPart != "" {
		out = intPart + "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseDecimalFloat reads a human decimal amount as a float64 for advisory
// USD math only. Base-unit arithmetic never goes through floats.
func ParseDecimalFloat(decimal string) float64 {
	raw := strings.TrimSpace(decimal)
	if raw == "" {
		return 0
	}
	f, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}
	out, _ := f.Float64()
	return out
}
