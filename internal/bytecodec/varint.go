// Package bytecodec implements the structured byte encoding shared by every
// on-disk artifact: 7-bit continuation varints, zig-zag signed varints,
// order-preserving big-endian floats, and length-prefixed byte strings.
package bytecodec

import (
	"encoding/binary"
	"io"
	"math"
)

// PutUvarint appends the varint encoding of v to dst and returns the
// extended slice. The encoding is encoding/binary's 7-bit little-endian
// continuation groups; this wrapper only adds the append-style signature.
func PutUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// PutVarint appends the zig-zag encoded varint of v.
func PutVarint(dst []byte, v int64) []byte {
	return PutUvarint(dst, zigzagEncode(v))
}

func zigzagEncode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// ReadUvarint reads a varint from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// ReadVarint reads a zig-zag varint from r.
func ReadVarint(r io.ByteReader) (int64, error) {
	u, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}

// Uvarint decodes a varint from the head of buf, returning the value and
// the number of bytes consumed (0 on error, mirroring binary.Uvarint).
func Uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// Varint decodes a zig-zag varint from the head of buf.
func Varint(buf []byte) (int64, int) {
	u, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, n
	}
	return zigzagDecode(u), n
}

// PutBytes appends a varint length prefix followed by b.
func PutBytes(dst []byte, b []byte) []byte {
	dst = PutUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

// ReadBytes reads a length-prefixed byte string from the head of buf,
// returning the slice (aliasing buf) and the number of bytes consumed.
func ReadBytes(buf []byte) ([]byte, int, error) {
	n, k := Uvarint(buf)
	if k <= 0 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	end := k + int(n)
	if end > len(buf) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return buf[k:end], end, nil
}

// orderPreservingFloat64 flips the sign bit of positive floats and all bits
// of negative floats so that lexicographic byte comparison of the
// resulting 8 bytes matches numeric comparison. Required for range scans
// over numeric fields stored in a sorted term dictionary.
func orderPreservingFloat64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func orderPreservingFloat64Inverse(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}

// PutFloat64 appends the order-preserving big-endian encoding of f.
func PutFloat64(dst []byte, f float64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], orderPreservingFloat64(f))
	return append(dst, buf[:]...)
}

// Float64 decodes an order-preserving float64 from the head of buf.
func Float64(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	return orderPreservingFloat64Inverse(binary.BigEndian.Uint64(buf)), nil
}

// PutOrderedInt64 appends a big-endian encoding of v with the sign bit
// flipped, so lexicographic byte comparison matches signed integer
// comparison.
func PutOrderedInt64(dst []byte, v int64) []byte {
	return PutFixedUint64(dst, uint64(v)^(1<<63))
}

// OrderedInt64 decodes an order-preserving int64 from the head of buf.
func OrderedInt64(buf []byte) int64 {
	return int64(FixedUint64(buf) ^ (1 << 63))
}

// PutFixedUint32 appends a fixed-width big-endian uint32, used for block
// headers where random access requires a known stride.
func PutFixedUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// FixedUint32 decodes a fixed-width big-endian uint32 from the head of buf.
func FixedUint32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// PutFixedUint64 appends a fixed-width big-endian uint64.
func PutFixedUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// FixedUint64 decodes a fixed-width big-endian uint64 from the head of buf.
func FixedUint64(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}
