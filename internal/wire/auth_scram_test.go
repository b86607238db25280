package wire

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// RFC 5802 test vectors, the same ones the teacher's scram package checks
// its own client against (lib-pq's scram/scram_test.go and
// auth-scram_test.go) — SCRAM math has no server dependency, so these run
// without a live backend.

func TestComputeSaltedPassword(t *testing.T) {
	salt, err := hex.DecodeString("74172b96cd9d296b497b")
	require.NoError(t, err)
	expected, err := hex.DecodeString("b58fb579cae2a50591a06a807bc0535106f8e1c725ea5ce3b6eb70ca4e2aeb99")
	require.NoError(t, err)

	got := computeSaltedPassword("pencil", salt, 4096)
	require.Equal(t, expected, got)
}

func TestComputeClientProof(t *testing.T) {
	salt, err := hex.DecodeString("31f2b148ca94a7e64554")
	require.NoError(t, err)

	saltedPassword := computeSaltedPassword("pencil", salt, 4096)
	authMessage := computeAuthMessage(
		"n=,r=MQiVmMEKTBZgNA==",
		"r=MQiVmMEKTBZgNA==8zeUHmzdT2SBnQ==,s=MfKxSMqUp+ZFVA==,i=4096",
		"c=biws,r=MQiVmMEKTBZgNA==8zeUHmzdT2SBnQ==")

	proof := computeClientProof(saltedPassword, authMessage)
	require.Equal(t, "3xQR96noltaeyOY5XSNcMtogCRRZ/qJvT8ry7i9FsGs=", base64.StdEncoding.EncodeToString(proof))
}

func TestComputeServerSignature(t *testing.T) {
	salt, err := hex.DecodeString("080f7c0a737897be9f0f")
	require.NoError(t, err)

	saltedPassword := computeSaltedPassword("pencil", salt, 4096)
	authMessage := computeAuthMessage(
		"n=,r=wDIyqexkMXIY7A==",
		"r=wDIyqexkMXIY7A==93UKLA23FxSN9Q==,s=CA98CnN4l76fDw==,i=4096",
		"c=biws,r=wDIyqexkMXIY7A==93UKLA23FxSN9Q==")

	sig := computeServerSignature(saltedPassword, authMessage)
	require.Equal(t, "IeQ9HCOw5KcB8G3NunvoV9SHHUdNT8YkP/d4FAwd73g=", base64.StdEncoding.EncodeToString(sig))
}

func TestXorBytes(t *testing.T) {
	require.Equal(t, []byte{0x0, 0x0, 0x0}, xorBytes([]byte{1, 2, 3}, []byte{1, 2, 3}))
	require.Equal(t, []byte{0x3, 0x1}, xorBytes([]byte{1, 1}, []byte{2, 0}))
}

func TestMD5Hex(t *testing.T) {
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", md5Hex("hello"))
}
