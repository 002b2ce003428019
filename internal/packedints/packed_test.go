package packedints

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

// For every format and every bits-per-value, the byte
// count must be large enough to hold valueCount values of bitsPerValue
// bits, and for the PACKED format it must be the *tightest* such count.
func TestByteCount(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	iters := 10 // >= 3
	for i := 0; i < iters; i++ {
		valueCount := rng.Int31n(math.MaxInt32-1) + 1 // [1, 2^31-1]
		for j := 0; j <= 1; j++ {
			format := PackedFormat(j)
			for bpv := uint32(1); bpv <= 64; bpv++ {
				byteCount := format.ByteCount(PACKED_VERSION_CURRENT, valueCount, bpv)
				if byteCount*8 < int64(valueCount)*int64(bpv) {
					t.Errorf("format=%v byteCount=%v valueCount=%v bpv=%v: too small", format, byteCount, valueCount, bpv)
				}
				if format == PACKED {
					if (byteCount-1)*8 >= int64(valueCount)*int64(bpv) {
						t.Errorf("format=%v byteCount=%v valueCount=%v bpv=%v: not tight", format, byteCount, valueCount, bpv)
					}
				}
			}
		}
	}
}

func TestMaxValue(t *testing.T) {
	if MaxValue(0) != 0 {
		t.Error("0 bit -> 0")
	}
	if MaxValue(1) != 1 {
		t.Error("1 bit -> 1")
	}
	if MaxValue(2) != 3 {
		t.Error("2 bits -> 3")
	}
	if MaxValue(64) != 0x7fffffffffffffff {
		t.Error("64 bits -> 0x7fffffffffffffff")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, bpv := range []uint32{1, 3, 5, 8, 13, 21, 32, 40, 63} {
		max := MaxValue(bpv)
		rng := rand.New(rand.NewSource(int64(bpv)))
		values := make([]int64, 200)
		w := NewWriter(bpv)
		for i := range values {
			v := int64(0)
			if max == math.MaxInt64 {
				v = rng.Int63()
			} else if max > 0 {
				v = rng.Int63n(max + 1)
			}
			values[i] = v
			w.Add(v)
		}
		r := NewReader(w.Bytes(), bpv)
		for i, want := range values {
			if got := r.Get(i); got != want {
				t.Fatalf("bpv=%d index=%d: got %d want %d", bpv, i, got, want)
			}
		}
	}
}

func TestBitsRequired(t *testing.T) {
	cases := []struct {
		v    int64
		bits uint32
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {255, 8}, {256, 9},
	}
	for _, c := range cases {
		if got := BitsRequired(c.v); got != c.bits {
			t.Errorf("BitsRequired(%d) = %d, want %d", c.v, got, c.bits)
		}
	}
}
