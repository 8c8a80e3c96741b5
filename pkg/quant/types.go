package quant

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Allenwang2004/Alltrader/pkg/safe"
)

// PriceMicros represents price multiplied by 1,000,000 (10^6).
// E.g., 1.23 USD = 1,230,000 PriceMicros.
type PriceMicros int64

// QtySats represents quantity multiplied by 100,000,000 (10^8).
// E.g., 1.0 BTC = 100,000,000 QtySats.
type QtySats int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale = 1_000_000
	QtyScale   = 100_000_000
)

// ToPriceMicros converts a float64 (from external API) to PriceMicros.
// Only used at the boundary. Internal logic uses PriceMicros or decimal directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// ToQtySats converts a float64 to QtySats.
func ToQtySats(f float64) QtySats {
	return QtySats(math.Round(f * QtyScale))
}

func (p PriceMicros) String() string {
	return fmt.Sprintf("%.6f", float64(p)/PriceScale)
}

// Decimal converts the fixed-point price to an exact decimal.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -6)
}

// FromDecimal converts a decimal price to PriceMicros, rounding half up.
func FromDecimal(d decimal.Decimal) PriceMicros {
	return PriceMicros(d.Shift(6).Round(0).IntPart())
}

func (q QtySats) String() string {
	return fmt.Sprintf("%.8f", float64(q)/QtyScale)
}

// Decimal converts the fixed-point quantity to an exact decimal.
func (q QtySats) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -8)
}

// ParseTimeStamp converts a millisecond string to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// ParsePriceMicros parses a numeric string to PriceMicros without going
// through float64.
func ParsePriceMicros(s string) (PriceMicros, error) {
	v, err := parseFixedPoint(s, 6)
	return PriceMicros(v), err
}

// ParseQtySats parses a numeric string to QtySats without going through float64.
func ParseQtySats(s string) (QtySats, error) {
	v, err := parseFixedPoint(s, 8)
	return QtySats(v), err
}

// parseFixedPoint parses a string representation of a decimal into an integer
// scaled by 10^decimals. Extra fractional precision is truncated toward zero.
// Example: parseFixedPoint("1.23", 6) -> 1,230,000.
func parseFixedPoint(s string, decimals int) (int64, error) {
	if s == "" || s == "null" {
		return 0, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid decimal %q: multiple dots", s)
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}

	sign := int64(1)
	if strings.HasPrefix(intPart, "-") {
		sign = -1
		intPart = intPart[1:]
	}

	var intVal int64
	if intPart != "" { // ".5" is a valid input
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, err
		}
		intVal = v
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	} else {
		fracPart += strings.Repeat("0", decimals-len(fracPart))
	}

	var fracVal int64
	if fracPart != "" {
		v, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, err
		}
		fracVal = v
	}

	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale = safe.SafeMul(scale, 10)
	}

	return safe.SafeMul(sign, safe.SafeAdd(safe.SafeMul(intVal, scale), fracVal)), nil
}
