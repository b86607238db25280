package pgodbc

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplitRangeTextInclusiveExclusive(t *testing.T) {
	loIncl, hiIncl, lo, hi, err := splitRangeText([]byte("[1,10)"))
	require.NoError(t, err)
	require.True(t, loIncl)
	require.False(t, hiIncl)
	require.Equal(t, "1", lo)
	require.Equal(t, "10", hi)
}

func TestSplitRangeTextInfiniteBounds(t *testing.T) {
	_, _, lo, hi, err := splitRangeText([]byte("(,)"))
	require.NoError(t, err)
	require.Empty(t, lo)
	require.Empty(t, hi)
}

func TestSplitRangeTextEmptyRange(t *testing.T) {
	_, _, _, _, err := splitRangeText([]byte("empty"))
	require.Error(t, err)
}

func TestDecodeRangeInt(t *testing.T) {
	d := decodeRange(func(s string) (any, error) { return strconv.ParseInt(s, 10, 64) })
	v, err := d([]byte("[1,10)"))
	require.NoError(t, err)
	r, ok := v.(Range)
	require.True(t, ok)
	require.True(t, r.LowerInclusive)
	require.False(t, r.UpperInclusive)
	require.EqualValues(t, 1, r.Lower)
	require.EqualValues(t, 10, r.Upper)
}

func TestRangeStringRoundTrip(t *testing.T) {
	r := Range{Lower: int64(1), Upper: int64(10), LowerInclusive: true, UpperInclusive: false}
	require.Equal(t, "[1,10)", r.String())
}

func TestEncodeRangeRejectsWrongType(t *testing.T) {
	_, err := encodeRange("not a range")
	require.Error(t, err)
}

func TestDecodeNumrangeUsesDecimal(t *testing.T) {
	d := decodeRange(func(s string) (any, error) { return decimal.NewFromString(s) })
	v, err := d([]byte("[1.5,2.5)"))
	require.NoError(t, err)
	r := v.(Range)
	require.True(t, r.Lower.(decimal.Decimal).Equal(decimal.NewFromFloat(1.5)))
}
