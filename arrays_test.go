package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeArraySimple(t *testing.T) {
	v, err := decodeArray([]byte(`{1,2,3}`))
	require.NoError(t, err)
	items, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, items, 3)
}

func TestDecodeArrayWithQuotedElement(t *testing.T) {
	v, err := decodeArray([]byte(`{hello,"with space"}`))
	require.NoError(t, err)
	items, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
}

func TestEncodeArrayStrings(t *testing.T) {
	s, err := encodeArray([]string{"a", "b c", "d"})
	require.NoError(t, err)
	require.Equal(t, `{a,"b c",d}`, s)
}

func TestEncodeArrayInts(t *testing.T) {
	s, err := encodeArray([]int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "{1,2,3}", s)
}

func TestEncodeArrayRejectsNonSlice(t *testing.T) {
	_, err := encodeArray(42)
	require.Error(t, err)
}

func TestArrayQuoteLeavesPlainWordUnquoted(t *testing.T) {
	require.Equal(t, "plain", arrayQuote("plain"))
	require.Equal(t, `"has space"`, arrayQuote("has space"))
	require.Equal(t, `"NULL"`, arrayQuote("NULL"))
}
