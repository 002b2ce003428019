package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldLengthsAllPresent(t *testing.T) {
	b := NewFieldLengthsBuilder(4)
	b.Set(0, 5)
	b.Set(1, 10)
	b.Set(2, 3)
	b.Set(3, 100)
	fl := b.Build()

	require.Equal(t, uint32(5), fl.At(0, 0))
	require.Equal(t, uint32(3), fl.At(2, 0))
	require.Greater(t, fl.Average(), 0.0)
}

func TestFieldLengthsPartialPresent(t *testing.T) {
	b := NewFieldLengthsBuilder(3)
	b.Set(0, 5)
	b.Set(2, 15)
	fl := b.Build()

	require.Equal(t, uint32(5), fl.At(0, 99))
	require.Equal(t, uint32(99), fl.At(1, 99))
	require.Equal(t, uint32(15), fl.At(2, 99))
}

func TestFieldLengthsLoadRoundTrip(t *testing.T) {
	b := NewFieldLengthsBuilder(2)
	b.Set(0, 7)
	b.Set(1, 7)
	fl := b.Build()

	loaded := LoadFieldLengths(fl.Bytes())
	require.Equal(t, fl.At(0, 0), loaded.At(0, 0))
	require.Equal(t, fl.At(1, 0), loaded.At(1, 0))
}

func TestFieldLengthsNilReceiver(t *testing.T) {
	var fl *FieldLengths
	require.Equal(t, uint32(9), fl.At(0, 9))
	require.Equal(t, 0.0, fl.Average())
	require.Equal(t, byte(0), fl.RawByte(0))
}
