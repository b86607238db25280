package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psqlodbc-go/pgodbc/oid"
)

func TestCodecDecodeDefaults(t *testing.T) {
	c := NewCodec()

	v, err := c.Decode(oid.T_int4, []byte("42"))
	require.NoError(t, err)
	require.EqualValues(t, 42, v)

	v, err = c.Decode(oid.T_bool, []byte("t"))
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = c.Decode(oid.T_bool, nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCodecDecodeUnknownOidFallsBackToText(t *testing.T) {
	c := NewCodec()
	v, err := c.Decode(9999999, []byte("whatever"))
	require.NoError(t, err)
	require.Equal(t, "whatever", v)
}

func TestCodecRegisterDecoderOverridesDefault(t *testing.T) {
	c := NewCodec()
	c.RegisterDecoder(oid.T_int4, func(raw []byte) (any, error) {
		return "overridden", nil
	})
	v, err := c.Decode(oid.T_int4, []byte("1"))
	require.NoError(t, err)
	require.Equal(t, "overridden", v)
}

func TestCodecEncodeNil(t *testing.T) {
	c := NewCodec()
	s, err := c.Encode(oid.T_int4, nil)
	require.NoError(t, err)
	require.Equal(t, "NULL", s)
}

func TestParseTemporalPadsTruncatedFraction(t *testing.T) {
	v, err := parseTemporal([]byte("2024-01-02 03:04:05."))
	require.NoError(t, err)
	require.NotZero(t, v)
}

func TestParseTemporalInvalid(t *testing.T) {
	v, err := parseTemporal([]byte("invalid"))
	require.NoError(t, err)
	require.NotNil(t, v)
}
