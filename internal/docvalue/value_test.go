package docvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRoundTrip checks round-trip fidelity for
// stored field values, including nested lists and maps.
func TestRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		FromBool(true),
		FromBool(false),
		FromInt64(-42),
		FromFloat64(3.14159),
		FromBytes([]byte{0x00, 0xFF, 0x10}),
		FromString("the quick brown fox"),
		FromList([]Value{FromInt64(1), FromString("two"), FromBool(true)}),
		FromMap(map[string]Value{
			"a": FromInt64(1),
			"b": FromList([]Value{FromString("nested")}),
		}),
	}

	for _, v := range values {
		buf := Encode(nil, v)
		got, n, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestEncodeMultipleConsecutive(t *testing.T) {
	var buf []byte
	vals := []Value{FromInt64(1), FromString("x"), FromBool(true)}
	for _, v := range vals {
		buf = Encode(buf, v)
	}
	off := 0
	for _, want := range vals {
		got, n, err := Decode(buf[off:])
		require.NoError(t, err)
		require.Equal(t, want.Kind, got.Kind)
		off += n
	}
	require.Equal(t, len(buf), off)
}
