package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		ID:             "seg_000007",
		Generation:     42,
		DocCount:       1000,
		SchemaFP:       0xdeadbeefcafef00d,
		DeletedVersion: 3,
	}
	buf := EncodeHeader(nil, h)
	got, n, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, h, got)
}

func TestHeaderRoundTripZeroValues(t *testing.T) {
	h := Header{ID: "seg_000000"}
	buf := EncodeHeader(nil, h)
	got, _, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}
