package pgodbc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatBoundParamNil(t *testing.T) {
	s, err := formatBoundParam(nil)
	require.NoError(t, err)
	require.Equal(t, "NULL", s)

	s, err = formatBoundParam(&BoundParam{Value: nil})
	require.NoError(t, err)
	require.Equal(t, "NULL", s)
}

func TestFormatBoundParamString(t *testing.T) {
	s, err := formatBoundParam(&BoundParam{Value: "it's fine"})
	require.NoError(t, err)
	require.Equal(t, "'it''s fine'", s)
}

func TestFormatBoundParamInt(t *testing.T) {
	s, err := formatBoundParam(&BoundParam{Value: int64(42)})
	require.NoError(t, err)
	require.Equal(t, "42", s)
}

func TestFormatBoundParamDecimalPreservesPrecision(t *testing.T) {
	s, err := formatBoundParam(&BoundParam{Value: decimal.RequireFromString("3.140000")})
	require.NoError(t, err)
	require.Equal(t, "3.140000", s)
}

func TestFormatBoundParamBytea(t *testing.T) {
	s, err := formatBoundParam(&BoundParam{Value: []byte{0xDE, 0xAD}})
	require.NoError(t, err)
	require.Equal(t, `E'\\xdead'`, s)
}

func TestFormatBoundParamDateUsesCType(t *testing.T) {
	tm := time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC)
	s, err := formatBoundParam(&BoundParam{Value: tm, CType: CTypeDate})
	require.NoError(t, err)
	require.Equal(t, "'2024-03-05'", s)
}

func TestFormatBoundParamUnsupportedType(t *testing.T) {
	_, err := formatBoundParam(&BoundParam{Value: struct{}{}})
	require.Error(t, err)
}

func TestMapODBCFunction(t *testing.T) {
	require.Equal(t, "textcat", mapODBCFunction("CONCAT"))
	require.Equal(t, "unknownfn", mapODBCFunction("unknownfn"))
}

func TestParsePositiveInt(t *testing.T) {
	n, ok := parsePositiveInt(" 12 ")
	require.True(t, ok)
	require.Equal(t, 12, n)

	_, ok = parsePositiveInt("-1")
	require.False(t, ok)

	_, ok = parsePositiveInt("nope")
	require.False(t, ok)
}
