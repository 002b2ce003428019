package bytecodec

import (
	"bufio"
	"bytes"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, 128, -128, 1 << 20, -(1 << 20), math.MinInt64, math.MaxInt64}
	for _, v := range values {
		buf := PutVarint(nil, v)
		r := bufio.NewReader(bytes.NewReader(buf))
		got, err := ReadVarint(r)
		require.NoError(t, err)
		require.Equal(t, v, got)

		got2, n := Varint(buf)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got2)
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := rng.Uint64()
		buf := PutUvarint(nil, v)
		got, n := Uvarint(buf)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	cases := [][]byte{nil, {}, []byte("a"), []byte("hello world"), bytes.Repeat([]byte{0xAB}, 300)}
	var buf []byte
	offsets := make([]int, 0, len(cases))
	for _, c := range cases {
		offsets = append(offsets, len(buf))
		buf = PutBytes(buf, c)
	}
	for i, c := range cases {
		got, _, err := ReadBytes(buf[offsets[i]:])
		require.NoError(t, err)
		require.Equal(t, len(c), len(got))
	}
}

// For any a < b of
// the same numeric kind, encode(a) <lex encode(b).
func TestFloat64OrderPreserving(t *testing.T) {
	values := []float64{
		-1e300, -1e10, -1.5, -1, -0.0001, 0, 0.0001, 1, 1.5, 1e10, 1e300,
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	require.Equal(t, values, sorted, "fixture must already be sorted")

	encoded := make([][]byte, len(sorted))
	for i, f := range sorted {
		encoded[i] = PutFloat64(nil, f)
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0,
			"encode(%v) must sort before encode(%v)", sorted[i-1], sorted[i])
	}

	for _, f := range sorted {
		buf := PutFloat64(nil, f)
		got, err := Float64(buf)
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
}

func TestFloat64OrderPreservingRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	values := make([]float64, 200)
	for i := range values {
		values[i] = (rng.Float64() - 0.5) * rng.Float64() * 1e12
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] == sorted[i] {
			continue
		}
		a := PutFloat64(nil, sorted[i-1])
		b := PutFloat64(nil, sorted[i])
		require.True(t, bytes.Compare(a, b) < 0)
	}
}
