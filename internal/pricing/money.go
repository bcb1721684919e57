package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in major currency units.
//
// Values are kept at full precision through every calculation and only rounded
// with Round or MinorUnits when displayed or submitted to a payment provider.
type Money = decimal.Decimal

// ErrInvalidMoney is returned when a loosely typed value cannot be read as money.
var ErrInvalidMoney = errors.New("invalid money value")

// Zero is the zero amount.
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to two decimal places for display.
func Round(m Money) Money {
	return m.Round(2)
}

// MinorUnits converts an amount to integer minor units (cents), rounding half away from zero.
func MinorUnits(m Money) int64 {
	return m.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits builds an amount from integer minor units.
func FromMinorUnits(units int64) Money {
	return decimal.New(units, -2)
}

// Format renders an amount with exactly two decimals, e.g. "9.90".
func Format(m Money) string {
	return m.StringFixed(2)
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ParseMoney reads an amount from a loosely typed value such as a JSON number,
// a numeric string ("19.99", "$1,250.00") or an integer.
func ParseMoney(v any) (Money, error) {
	switch val := v.(type) {
	case nil:
		return Zero, fmt.Errorf("%w: missing", ErrInvalidMoney)
	case decimal.Decimal:
		return val, nil
	case *decimal.Decimal:
		if val == nil {
			return Zero, fmt.Errorf("%w: missing", ErrInvalidMoney)
		}
		return *val, nil
	case string:
		return parseMoneyString(val)
	case json.Number:
		return parseMoneyString(val.String())
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidMoney, v)
	}
}

// ParseOptionalMoney is ParseMoney that maps nil and blank strings to nil.
func ParseOptionalMoney(v any) (*Money, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	m, err := ParseMoney(v)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parseMoneyString(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty string", ErrInvalidMoney)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, raw)
	}
	return d, nil
}

func fromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidMoney, f)
	}
	return decimal.NewFromFloat(f), nil
}
