// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnits represents a monetary amount in minor currency units (paise, cents).
// Storage: int64 - sufficient for ±922 trillion minor units.
// All arithmetic on money is exact integer arithmetic; floats never enter.
type MinorUnits int64

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsPositive() bool { return m > 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }
func (m MinorUnits) Neg() MinorUnits  { return -m }

func (m MinorUnits) Abs() MinorUnits {
	if m < 0 {
		return -m
	}
	return m
}

// MinorScale is the number of decimal places in a major unit.
// The platform books everything at 2 (1 rupee = 100 paise).
const MinorScale = 2

// Decimal converts minor units to a decimal major-unit amount for display.
func (m MinorUnits) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorScale)
}

// ParseMinorUnits parses a decimal major-unit string into minor units.
// Half-up rounding is applied beyond MinorScale digits.
func ParseMinorUnits(s string) (MinorUnits, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return MinorUnits(d.Shift(MinorScale).Round(0).IntPart()), nil
}

// Money is a monetary amount bound to a currency.
// Mixing currencies in arithmetic is a programming error and panics:
// the posting engine operates on a single business currency per transaction
// and validates currency at its boundary.
type Money struct {
	Units    MinorUnits `db:"units" json:"units"`
	Currency string     `db:"currency" json:"currency"`
}

// NewMoney creates a Money value from minor units.
func NewMoney(units MinorUnits, currency string) Money {
	return Money{Units: units, Currency: currency}
}

// ParseMoney parses a decimal major-unit string into Money.
func ParseMoney(s, currency string) (Money, error) {
	units, err := ParseMinorUnits(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Units: units, Currency: currency}, nil
}

func (m Money) assertSameCurrency(o Money) {
	if m.Currency != o.Currency {
		panic(fmt.Sprintf("currency mismatch: %s vs %s", m.Currency, o.Currency))
	}
}

func (m Money) Add(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Units: m.Units + o.Units, Currency: m.Currency}
}

func (m Money) Sub(o Money) Money {
	m.assertSameCurrency(o)
	return Money{Units: m.Units - o.Units, Currency: m.Currency}
}

func (m Money) Neg() Money {
	return Money{Units: -m.Units, Currency: m.Currency}
}

func (m Money) IsZero() bool     { return m.Units == 0 }
func (m Money) IsNegative() bool { return m.Units < 0 }

// Cmp compares amounts: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int {
	m.assertSameCurrency(o)
	switch {
	case m.Units < o.Units:
		return -1
	case m.Units > o.Units:
		return 1
	default:
		return 0
	}
}

// MulQty multiplies by a fixed-point quantity with half-up rounding.
// Used to extend a unit rate over a line quantity.
func (m Money) MulQty(q Quantity) Money {
	return Money{Units: MulQtyUnits(m.Units, q), Currency: m.Currency}
}

// MulQtyUnits computes units × quantity at 1e4 scale, rounding half up.
func MulQtyUnits(units MinorUnits, q Quantity) MinorUnits {
	prod := int64(units) * int64(q)
	half := QuantityScale / 2
	if prod >= 0 {
		return MinorUnits((prod + half) / QuantityScale)
	}
	return MinorUnits((prod - half) / QuantityScale)
}

// Allocate splits the amount proportionally to weights using the
// largest-remainder method. The parts always sum exactly to the original,
// which keeps the double-entry balance invariant intact when distributing
// tax or discounts across lines.
//
// All weights must be non-negative and at least one must be positive.
func (m Money) Allocate(weights []int64) ([]Money, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("allocate: no weights")
	}

	var total int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("allocate: negative weight at %d", i)
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("allocate: all weights are zero")
	}

	// Work on the absolute value; restore sign at the end so remainders
	// distribute identically for debits and credits.
	units := int64(m.Units)
	sign := int64(1)
	if units < 0 {
		sign = -1
		units = -units
	}

	parts := make([]Money, len(weights))
	remainders := make([]int64, len(weights))
	var assigned int64
	for i, w := range weights {
		share := units * w / total
		remainders[i] = units * w % total
		parts[i] = Money{Units: MinorUnits(sign * share), Currency: m.Currency}
		assigned += share
	}

	// Distribute the leftover minor units to the largest remainders,
	// ties broken by lowest index for determinism.
	for leftover := units - assigned; leftover > 0; leftover-- {
		best := -1
		for i, r := range remainders {
			if best == -1 || r > remainders[best] {
				best = i
			}
		}
		parts[best].Units += MinorUnits(sign)
		remainders[best] = -1
	}

	return parts, nil
}

// String formats as a major-unit decimal with currency code.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Units.Decimal().StringFixed(MinorScale), m.Currency)
}
