package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for negative or otherwise unusable amounts.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrInvalidPercent is returned when a percentage falls outside [0, 100].
	ErrInvalidPercent = errors.New("money: percent out of range")
	// ErrOverflow marks an int64 cents overflow. Arithmetic helpers panic with it.
	ErrOverflow = errors.New("money: arithmetic overflow")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// Money is an amount in minor currency units (cents).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromCents wraps a raw cents value.
func FromCents(cents int64) Money { return Money(cents) }

// FromDecimal normalises a decimal amount to cents, rounding half-up.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return Money(cents.IntPart()), nil
}

// MustFromString parses a decimal literal and panics on failure. Intended for tests and fixtures.
func MustFromString(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	m, err := FromDecimal(d)
	if err != nil {
		panic(err)
	}
	return m
}

// ToDecimal converts cents back to a 2-decimal amount.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Cents returns the raw minor-unit value.
func (m Money) Cents() int64 { return int64(m) }

// Decimal is shorthand for ToDecimal(m).
func (m Money) Decimal() decimal.Decimal { return ToDecimal(m) }

// String renders the amount with exactly two decimals.
func (m Money) String() string { return ToDecimal(m).StringFixed(2) }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// Add returns m+o. It panics on overflow.
func (m Money) Add(o Money) Money {
	s := m + o
	if (o > 0 && s < m) || (o < 0 && s > m) {
		panic(overflow("add", m, o))
	}
	return s
}

// Sub returns m-o. It panics on overflow.
func (m Money) Sub(o Money) Money {
	d := m - o
	if (o > 0 && d > m) || (o < 0 && d < m) {
		panic(overflow("sub", m, o))
	}
	return d
}

// Mul returns m*qty. It panics on overflow.
func (m Money) Mul(qty int64) Money {
	if m == 0 || qty == 0 {
		return 0
	}
	r := int64(m) * qty
	if r/qty != int64(m) || (qty == -1 && m == math.MinInt64) {
		panic(overflow("mul", m, Money(qty)))
	}
	return Money(r)
}

// MulPercent returns pct percent of m, rounded half-up to the nearest cent.
// The result never exceeds m.
func MulPercent(m Money, pct decimal.Decimal) (Money, error) {
	if m < 0 {
		return 0, fmt.Errorf("%w: %d cents", ErrInvalidAmount, int64(m))
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPercent, pct.String())
	}
	r := decimal.NewFromInt(int64(m)).Mul(pct).Shift(-2).Round(0)
	out := Money(r.IntPart())
	if out > m {
		out = m
	}
	return out, nil
}

// Add is the package form of a.Add(b).
func Add(a, b Money) Money { return a.Add(b) }

// Sub is the package form of a.Sub(b).
func Sub(a, b Money) Money { return a.Sub(b) }

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Sum adds all values.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func overflow(op string, a, b Money) error {
	return fmt.Errorf("%w: %s %d, %d", ErrOverflow, op, int64(a), int64(b))
}
