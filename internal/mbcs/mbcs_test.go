package mbcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatUTF8Boundaries(t *testing.T) {
	// "a", then the two-byte UTF-8 encoding of 'é' (0xC3 0xA9).
	s := []byte{'a', 0xC3, 0xA9}
	state := 0
	boundaries := []bool{}
	for _, b := range s {
		boundaries = append(boundaries, state == 0)
		state = Stat(state, b, UTF8)
	}
	require.Equal(t, []bool{true, true, false}, boundaries)
}

func TestRuneCountUTF8(t *testing.T) {
	s := []byte{'a', 0xC3, 0xA9, 'b'} // a, é, b => 3 characters
	require.Equal(t, 3, RuneCount(s, UTF8))
}

func TestLowerASCIIOnly(t *testing.T) {
	s := []byte{'A', 'B', 0xC3, 0xA9}
	out := LowerASCII(s, UTF8)
	require.Equal(t, []byte{'a', 'b', 0xC3, 0xA9}, out)
}

func TestUTF8UCS2RoundTrip(t *testing.T) {
	orig := []byte("hello")
	ucs2 := UTF8ToUCS2(orig)
	back := UCS2ToUTF8(ucs2, false)
	require.Equal(t, orig, back)
}

func TestNameToCodeDefaultsUnknownToSingleByte(t *testing.T) {
	require.Equal(t, Unknown, NameToCode("MADE_UP_ENCODING"))
	require.Equal(t, UTF8, NameToCode("UTF8"))
}
