// Package core holds the net worth domain: sections, groups and categories,
// the exact decimal amounts they carry, and the aggregation rules that derive
// group and section totals from category values.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ValuePrecision is the number of fractional digits a category value keeps.
const ValuePrecision = 2

// Accepted values stay within the finite float64 range: at most maxIntDigits
// integer digits and no digit below 10^minExponent. Anything larger would make
// additions and rescaling build numbers with millions of digits.
const (
	maxIntDigits = 309
	minExponent  = -324
)

// ErrOutOfRange is returned by ParseAmount for values beyond the accepted range.
var ErrOutOfRange = errors.New("amount out of range")

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)

	// thousandsGrouped matches "1,234" or "12,345,678.9".
	thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
)

// inRange reports whether d can take part in arithmetic at a bounded cost.
func inRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	return exp >= minExponent && int64(d.NumDigits())+exp <= maxIntDigits
}

// Amount is an exact decimal value as stored in the document.
//
// A document may carry a JSON value that is not a number where an amount is
// expected, or a number outside the accepted range. Such a value is kept
// verbatim in raw so it encodes back unchanged, and it counts as zero in every
// computation.
type Amount struct {
	d   decimal.Decimal
	raw json.RawMessage
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// AmountFromFloat builds an Amount from the shortest decimal form of f.
func AmountFromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// AmountFromCents builds an Amount from an integer number of cents.
func AmountFromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -ValuePrecision)}
}

// ParseAmount parses a decimal string strictly.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, err
	}
	if !inRange(d) {
		return Amount{}, fmt.Errorf("%s: %w", s, ErrOutOfRange)
	}
	return Amount{d: d}, nil
}

// MustAmount is ParseAmount for literals; it panics on malformed input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic("core: invalid amount literal " + s + ": " + err.Error())
	}
	return a
}

// ParseCategoryValue turns raw user input into an acceptable category value.
//
// Input that does not parse as a decimal number, or parses as a negative one,
// yields zero, as does a value too large or too small for a float64. More than
// two fractional digits are truncated, never rounded. Commas are read as
// thousands separators when they group digits by three ("1,234.56"), and a
// single comma with no dot is a decimal separator ("1,5"). The function never
// fails: coercion is the whole contract.
//
// Examples:
//
//	ParseCategoryValue("12.345") -> 12.34
//	ParseCategoryValue("-5")     -> 0
//	ParseCategoryValue("abc")    -> 0
//	ParseCategoryValue("1,234")  -> 1234
//	ParseCategoryValue("1e400")  -> 0
func ParseCategoryValue(raw string) Amount {
	d, err := decimal.NewFromString(normalizeSeparators(strings.TrimSpace(raw)))
	if err != nil || d.IsNegative() || d.IsZero() || !inRange(d) {
		return Amount{}
	}
	return Amount{d: d.Truncate(ValuePrecision)}
}

// normalizeSeparators rewrites commas into the dot notation decimal parses.
// Ambiguous use returns an unparseable string.
func normalizeSeparators(s string) string {
	switch {
	case !strings.Contains(s, ","):
		return s
	case thousandsGrouped.MatchString(s):
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && !strings.Contains(s, "."):
		return strings.Replace(s, ",", ".", 1)
	default:
		return ""
	}
}

// Decimal returns the numeric value; a non-numeric stored value is zero.
func (a Amount) Decimal() decimal.Decimal {
	if a.raw != nil {
		return decimal.Zero
	}
	return a.d
}

// IsNumeric reports whether the stored value is a number.
func (a Amount) IsNumeric() bool { return a.raw == nil }

func (a Amount) IsZero() bool     { return a.Decimal().IsZero() }
func (a Amount) IsNegative() bool { return a.Decimal().IsNegative() }
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.Decimal().Add(b.Decimal())}
}
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.Decimal().Sub(b.Decimal())}
}

// Equal compares numeric values; two non-numeric values are equal when their
// stored bytes are.
func (a Amount) Equal(b Amount) bool {
	if a.raw != nil || b.raw != nil {
		return bytes.Equal(a.raw, b.raw)
	}
	return a.d.Equal(b.d)
}

// Cents returns the value in hundredths, truncated and clamped to int64.
func (a Amount) Cents() int64 {
	c := a.MinorUnits(ValuePrecision)
	switch {
	case c.GreaterThan(maxInt64):
		return math.MaxInt64
	case c.LessThan(minInt64):
		return math.MinInt64
	}
	return c.IntPart()
}

// MinorUnits returns the value scaled by 10^fraction and truncated to an
// integer, e.g. cents for fraction 2.
func (a Amount) MinorUnits(fraction int32) decimal.Decimal {
	return a.Decimal().Shift(fraction).Truncate(0)
}

// FitsInt64 reports whether d converts to int64 without wrapping.
func FitsInt64(d decimal.Decimal) bool {
	return !d.GreaterThan(maxInt64) && !d.LessThan(minInt64)
}

// String formats the numeric value; non-numeric values print their raw JSON.
func (a Amount) String() string {
	if a.raw != nil {
		return string(a.raw)
	}
	return a.d.String()
}

// MarshalJSON writes a bare JSON number, or the original bytes for a
// non-numeric value.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return []byte(a.d.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		d, err := decimal.NewFromString(string(trimmed))
		if err == nil && inRange(d) {
			*a = Amount{d: d}
			return nil
		}
	}
	*a = Amount{raw: append(json.RawMessage(nil), trimmed...)}
	return nil
}
