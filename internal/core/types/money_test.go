package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want MinorUnits
	}{
		{"0", 0},
		{"1000", 100000},
		{"1180.00", 118000},
		{"0.01", 1},
		{"0.005", 1},   // half up
		{"-0.005", -1}, // half away from zero
		{"-42.50", -4250},
	}

	for _, tt := range tests {
		got, err := ParseMinorUnits(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMinorUnits("not-a-number")
	assert.Error(t, err)
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(118000, "INR")
	b := NewMoney(18000, "INR")

	assert.Equal(t, MinorUnits(136000), a.Add(b).Units)
	assert.Equal(t, MinorUnits(100000), a.Sub(b).Units)
	assert.Equal(t, MinorUnits(-118000), a.Neg().Units)
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, "1180.00 INR", a.String())
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	a := NewMoney(100, "INR")
	b := NewMoney(100, "USD")
	assert.Panics(t, func() { a.Add(b) })
}

func TestMulQty(t *testing.T) {
	rate := NewMoney(10050, "INR") // 100.50 per unit

	qty, err := ParseQuantity("2.5")
	require.NoError(t, err)
	assert.Equal(t, MinorUnits(25125), rate.MulQty(qty).Units) // 251.25

	// Half-up rounding: 0.01 × 0.5 = 0.005 → 0.01
	small := NewMoney(1, "INR")
	half, _ := ParseQuantity("0.5")
	assert.Equal(t, MinorUnits(1), small.MulQty(half).Units)

	// Negative amounts round away from zero.
	assert.Equal(t, MinorUnits(-1), small.Neg().MulQty(half).Units)
}

func TestAllocateSumsToTotal(t *testing.T) {
	tests := []struct {
		name    string
		units   MinorUnits
		weights []int64
		want    []MinorUnits
	}{
		{"even split", 100, []int64{1, 1}, []MinorUnits{50, 50}},
		{"remainder to largest", 100, []int64{1, 1, 1}, []MinorUnits{34, 33, 33}},
		{"proportional", 18000, []int64{100000, 50000}, []MinorUnits{12000, 6000}},
		{"adversarial remainders", 7, []int64{3, 3, 3}, []MinorUnits{3, 2, 2}},
		{"negative total", -7, []int64{3, 3, 3}, []MinorUnits{-3, -2, -2}},
		{"zero weight line", 10, []int64{0, 1}, []MinorUnits{0, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMoney(tt.units, "INR")
			parts, err := m.Allocate(tt.weights)
			require.NoError(t, err)
			require.Len(t, parts, len(tt.weights))

			var sum MinorUnits
			for i, p := range parts {
				assert.Equal(t, tt.want[i], p.Units, "part %d", i)
				sum += p.Units
			}
			assert.Equal(t, tt.units, sum, "parts must sum to total")
		})
	}
}

func TestAllocateRejectsBadWeights(t *testing.T) {
	m := NewMoney(100, "INR")

	_, err := m.Allocate(nil)
	assert.Error(t, err)

	_, err = m.Allocate([]int64{0, 0})
	assert.Error(t, err)

	_, err = m.Allocate([]int64{1, -1})
	assert.Error(t, err)
}

func TestQuantityJSON(t *testing.T) {
	q, err := ParseQuantity("2.5")
	require.NoError(t, err)

	data, err := q.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "2.5000", string(data))

	var back Quantity
	require.NoError(t, back.UnmarshalJSON([]byte(`"2.5"`)))
	assert.Equal(t, q, back)

	require.NoError(t, back.UnmarshalJSON([]byte(`3`)))
	assert.Equal(t, NewQuantityFromInt(3), back)
}
