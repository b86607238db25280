package pgodbc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInet(t *testing.T) {
	v, err := decodeInet([]byte("192.168.1.1"))
	require.NoError(t, err)
	ip, ok := v.(net.IP)
	require.True(t, ok)
	require.Equal(t, "192.168.1.1", ip.String())
}

func TestDecodeInetInvalid(t *testing.T) {
	_, err := decodeInet([]byte("not-an-ip"))
	require.Error(t, err)
}

func TestEncodeInet(t *testing.T) {
	s, err := encodeInet(net.ParseIP("10.0.0.1"))
	require.NoError(t, err)
	require.Contains(t, s, "10.0.0.1")
}

func TestDecodeCidr(t *testing.T) {
	v, err := decodeCidr([]byte("192.168.0.0/24"))
	require.NoError(t, err)
	n, ok := v.(net.IPNet)
	require.True(t, ok)
	require.Equal(t, "192.168.0.0/24", n.String())
}

func TestDecodeMacaddr(t *testing.T) {
	v, err := decodeMacaddr([]byte("08:00:2b:01:02:03"))
	require.NoError(t, err)
	mac, ok := v.(net.HardwareAddr)
	require.True(t, ok)
	require.Equal(t, "08:00:2b:01:02:03", mac.String())
}

func TestEncodeMacaddrRejectsWrongType(t *testing.T) {
	_, err := encodeMacaddr("not a mac")
	require.Error(t, err)
}
