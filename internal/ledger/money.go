package ledger

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative decimal amount with at most Scale
// fractional digits.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, invalid(field, "required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid(field, "not a number")
	}
	return checkAmount(field, d)
}

// FromFloat converts a JSON-style float, rejecting NaN and infinities.
func FromFloat(field string, f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, invalid(field, "must be a finite number")
	}
	return checkAmount(field, decimal.NewFromFloat(f))
}

// CheckAmount applies the same rules as ParseAmount to an already decoded value.
func CheckAmount(field string, d decimal.Decimal) error {
	_, err := checkAmount(field, d)
	return err
}

// MaxIntegerDigits bounds stored amounts below 10^12, the range of a
// numeric(14,2) column.
const MaxIntegerDigits = 12

// maxCoefficientBits keeps coefficients to roughly 38 decimal digits.
const maxCoefficientBits = 128

// checkMagnitude rejects values outside the storable range using only the
// coefficient size and exponent. Comparing or adding decimals rescales
// them, which costs time and memory proportional to the exponent.
// Zero is held to the same exponent bounds.
func checkMagnitude(field string, d decimal.Decimal) error {
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return invalid(field, "too many digits")
	}
	exp := int64(d.Exponent())
	if int64(d.NumDigits())+exp > MaxIntegerDigits {
		return invalid(field, "too large")
	}
	// At this exponent a bounded coefficient leaves a non-zero value below
	// every currency's minor unit.
	if exp < -(40 + Scale) {
		return invalid(field, "finer than the currency minor unit")
	}
	return nil
}

func checkAmount(field string, d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "must not be negative")
	}
	if err := checkMagnitude(field, d); err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Truncate(Scale)) {
		return decimal.Zero, invalid(field, "more than 2 decimal places")
	}
	return d, nil
}

// ISO 4217 minor-unit exponents that differ from 2.
var exponents = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "UGX": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// ToMinorUnits converts a major-unit amount into the gateway's integer minor
// unit (e.g. rupees to paise). Fractions below one minor unit are rejected
// rather than rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if len(strings.TrimSpace(currency)) != 3 {
		return 0, invalid("currency", "must be a 3-letter ISO code")
	}
	if amount.IsNegative() {
		return 0, invalid("amount", "must not be negative")
	}
	if err := checkMagnitude("amount", amount); err != nil {
		return 0, err
	}
	minor := amount.Shift(Exponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, invalid("amount", "finer than the currency minor unit")
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, invalid("amount", "too large")
	}
	return minor.IntPart(), nil
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}
