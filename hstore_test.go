package pgodbc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHstore(t *testing.T) {
	v, err := decodeHstore([]byte(`"k1"=>"v1", "k2"=>"v2"`))
	require.NoError(t, err)
	m, ok := v.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "v1", m["k1"])
	require.Equal(t, "v2", m["k2"])
}

func TestEncodeHstoreContainsKeyAndValue(t *testing.T) {
	s, err := encodeHstore(map[string]string{"a": "b"})
	require.NoError(t, err)
	require.Contains(t, s, "a")
	require.Contains(t, s, "b")
}

func TestEncodeHstoreRejectsWrongType(t *testing.T) {
	_, err := encodeHstore(42)
	require.Error(t, err)
}

func TestRegisterHstoreOidInstallsCodecEntries(t *testing.T) {
	c := NewCodec()
	c.registerHstoreOid(16401)
	v, err := c.Decode(16401, []byte(`"k"=>"v"`))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k": "v"}, v)
}
