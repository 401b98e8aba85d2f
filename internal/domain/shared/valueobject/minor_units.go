package valueobject

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitFactor is the number of minor units (cents) in one major unit.
const MinorUnitFactor = 100

// minorUnitExp is the decimal exponent matching MinorUnitFactor.
const minorUnitExp = -2

var minorUnitFactor = decimal.NewFromInt(MinorUnitFactor)

// CoerceAmount normalizes any amount supplied by a caller or read from storage
// into a decimal. Values that are not numbers, or are NaN or infinite, become
// zero. It never fails: money summaries must render even on dirty data.
//
// Accepted inputs: decimal.Decimal, *decimal.Decimal, decimal.NullDecimal,
// Money, every int/uint kind, float32, float64, json.Number and numeric strings
// (surrounding whitespace ignored, scientific notation allowed).
func CoerceAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case Money:
		return x.Amount()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int8:
		return decimal.NewFromInt(int64(x))
	case int16:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0)
	case uint8:
		return decimal.NewFromInt(int64(x))
	case uint16:
		return decimal.NewFromInt(int64(x))
	case uint32:
		return decimal.NewFromInt(int64(x))
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	case json.Number:
		return parseAmount(string(x))
	case string:
		return parseAmount(x)
	default:
		return decimal.Zero
	}
}

func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MaxStoredMinorUnits is the largest magnitude, in minor units, an amount may
// have to fit a decimal(18,2) column.
const MaxStoredMinorUnits int64 = 999_999_999_999_999_999

// maxMinorDigits is the digit count of math.MaxInt64.
const maxMinorDigits = 19

// ToMinorUnits converts a major-unit amount to an integer count of minor units,
// rounding half away from zero. Malformed input counts as zero. Amounts beyond
// the int64 range saturate at math.MaxInt64 or math.MinInt64.
func ToMinorUnits(v any) int64 {
	scaled := CoerceAmount(v).Mul(minorUnitFactor)
	if scaled.IsZero() {
		return 0
	}

	// |scaled| < 10^magnitude; checked before rounding so extreme exponents
	// never get rescaled.
	magnitude := scaled.NumDigits() + int(scaled.Exponent())
	switch {
	case magnitude <= -1:
		return 0
	case magnitude > maxMinorDigits:
		return saturate(scaled.Sign())
	}

	n := scaled.Round(0).BigInt()
	if !n.IsInt64() {
		return saturate(n.Sign())
	}
	return n.Int64()
}

// IsStorableAmount reports whether v, rounded to minor units, fits the
// decimal(18,2) money columns.
func IsStorableAmount(v any) bool {
	m := ToMinorUnits(v)
	return m >= -MaxStoredMinorUnits && m <= MaxStoredMinorUnits
}

// ToMajorUnits converts minor units back to a major-unit amount. The division
// is exact, so the result always has at most two decimal places.
func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, minorUnitExp)
}

// SumMinorUnits adds amounts in minor units. Money is aggregated here or with
// AddMinorUnits, never by summing decimals or floats directly. The sum
// saturates instead of wrapping.
func SumMinorUnits(values ...any) int64 {
	var sum int64
	for _, v := range values {
		sum = AddMinorUnits(sum, ToMinorUnits(v))
	}
	return sum
}

// AddMinorUnits returns a+b, saturating at the int64 bounds
func AddMinorUnits(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// SubMinorUnits returns a-b, saturating at the int64 bounds
func SubMinorUnits(a, b int64) int64 {
	switch {
	case b < 0 && a > math.MaxInt64+b:
		return math.MaxInt64
	case b > 0 && a < math.MinInt64+b:
		return math.MinInt64
	}
	return a - b
}

func saturate(sign int) int64 {
	if sign < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

// RoundToMinor rounds an amount to the nearest minor unit.
func RoundToMinor(v any) decimal.Decimal {
	return ToMajorUnits(ToMinorUnits(v))
}
