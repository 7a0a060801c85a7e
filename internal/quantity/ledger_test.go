package quantity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSplitQuantityPreservesTotal(t *testing.T) {
	cases := []struct{ total, deliver string }{
		{"100", "60"},
		{"100", "100"},
		{"0.3", "0.1"},
		{"5.75", "2.33"},
		{"1000000", "0.01"},
	}
	for _, tc := range cases {
		split, err := SplitQuantity(dec(tc.total), dec(tc.deliver))
		require.NoError(t, err, "total=%s deliver=%s", tc.total, tc.deliver)
		require.True(t, split.Deliver.Add(split.Remainder).Equal(dec(tc.total)),
			"deliver=%s remainder=%s total=%s", split.Deliver, split.Remainder, tc.total)
	}
}

func TestSplitQuantityRejectsInvalidAmounts(t *testing.T) {
	total := dec("10")
	for _, deliver := range []string{"0", "-1", "10.0001", "11"} {
		_, err := SplitQuantity(total, dec(deliver))
		require.ErrorIs(t, err, ErrInvalidQuantity, "deliver=%s", deliver)
	}
}

func TestSplitQuantityFullConsumptionLeavesZeroRemainder(t *testing.T) {
	split, err := SplitQuantity(dec("42.5"), dec("42.5"))
	require.NoError(t, err)
	require.True(t, split.Remainder.IsZero())
}

func TestRepeatedSplitsDoNotDrift(t *testing.T) {
	// 0.1 is not representable in binary floating point; decimal keeps it exact
	// across many iterations.
	remaining := dec("10")
	step := dec("0.1")
	var delivered decimal.Decimal
	for i := 0; i < 99; i++ {
		split, err := SplitQuantity(remaining, step)
		require.NoError(t, err)
		delivered = delivered.Add(split.Deliver)
		remaining = split.Remainder
	}
	require.True(t, delivered.Add(remaining).Equal(dec("10")))
	require.True(t, remaining.Equal(dec("0.1")))
}

func TestRound2(t *testing.T) {
	require.Equal(t, "3.33", Round2(dec("3.3333")).String())
	require.Equal(t, "3.34", Round2(dec("3.335")).String())
	require.Equal(t, "5", Round2(dec("5")).String())
}
