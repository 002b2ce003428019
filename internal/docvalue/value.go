// Package docvalue implements the tagged-union value type used for stored
// field payloads: null, bool, i64, f64, bytes,
// string, list<value>, map<string,value>.
package docvalue

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/quillsearch/quill/internal/bytecodec"
)

// Kind identifies which variant a Value holds.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindBytes
	KindString
	KindList
	KindMap
)

// Value is a dynamically typed, language-neutral stored field payload.
// Exactly one of the fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Bytes []byte
	Str   string
	List  []Value
	Map   map[string]Value
}

// Compare orders two values: first by kind tag, then by the natural
// order of the kind (numeric, lexicographic, or element-wise). Used for
// sort-by-field result ordering.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	case KindInt64:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
	case KindFloat64:
		switch {
		case a.Float < b.Float:
			return -1
		case a.Float > b.Float:
			return 1
		}
	case KindBytes:
		return bytes.Compare(a.Bytes, b.Bytes)
	case KindString:
		return strings.Compare(a.Str, b.Str)
	case KindList:
		for i := 0; i < len(a.List) && i < len(b.List); i++ {
			if c := Compare(a.List[i], b.List[i]); c != 0 {
				return c
			}
		}
		return len(a.List) - len(b.List)
	}
	return 0
}

func Null() Value                 { return Value{Kind: KindNull} }
func FromBool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func FromInt64(i int64) Value     { return Value{Kind: KindInt64, Int: i} }
func FromFloat64(f float64) Value { return Value{Kind: KindFloat64, Float: f} }
func FromBytes(b []byte) Value    { return Value{Kind: KindBytes, Bytes: b} }
func FromString(s string) Value   { return Value{Kind: KindString, Str: s} }
func FromList(v []Value) Value    { return Value{Kind: KindList, List: v} }
func FromMap(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// Encode appends the self-describing encoding of v to dst. Round-trip
// fidelity is guaranteed; byte-for-byte equality with other encoders of
// the same data is not.
func Encode(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.Kind))
	switch v.Kind {
	case KindNull:
	case KindBool:
		if v.Bool {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case KindInt64:
		dst = bytecodec.PutVarint(dst, v.Int)
	case KindFloat64:
		dst = bytecodec.PutFloat64(dst, v.Float)
	case KindBytes:
		dst = bytecodec.PutBytes(dst, v.Bytes)
	case KindString:
		dst = bytecodec.PutBytes(dst, []byte(v.Str))
	case KindList:
		dst = bytecodec.PutUvarint(dst, uint64(len(v.List)))
		for _, e := range v.List {
			dst = Encode(dst, e)
		}
	case KindMap:
		dst = bytecodec.PutUvarint(dst, uint64(len(v.Map)))
		for k, e := range v.Map {
			dst = bytecodec.PutBytes(dst, []byte(k))
			dst = Encode(dst, e)
		}
	}
	return dst
}

// Decode reads a Value from the head of buf, returning the value and the
// number of bytes consumed.
func Decode(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, fmt.Errorf("docvalue: empty buffer")
	}
	kind := Kind(buf[0])
	off := 1
	switch kind {
	case KindNull:
		return Value{Kind: KindNull}, off, nil
	case KindBool:
		if off >= len(buf) {
			return Value{}, 0, fmt.Errorf("docvalue: truncated bool")
		}
		return Value{Kind: KindBool, Bool: buf[off] != 0}, off + 1, nil
	case KindInt64:
		i, n := bytecodec.Varint(buf[off:])
		if n <= 0 {
			return Value{}, 0, fmt.Errorf("docvalue: truncated int64")
		}
		return Value{Kind: KindInt64, Int: i}, off + n, nil
	case KindFloat64:
		f, err := bytecodec.Float64(buf[off:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindFloat64, Float: f}, off + 8, nil
	case KindBytes:
		b, n, err := bytecodec.ReadBytes(buf[off:])
		if err != nil {
			return Value{}, 0, err
		}
		cp := append([]byte(nil), b...)
		return Value{Kind: KindBytes, Bytes: cp}, off + n, nil
	case KindString:
		b, n, err := bytecodec.ReadBytes(buf[off:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindString, Str: string(b)}, off + n, nil
	case KindList:
		count, n := bytecodec.Uvarint(buf[off:])
		if n <= 0 {
			return Value{}, 0, fmt.Errorf("docvalue: truncated list header")
		}
		off += n
		list := make([]Value, 0, count)
		for i := uint64(0); i < count; i++ {
			v, n, err := Decode(buf[off:])
			if err != nil {
				return Value{}, 0, err
			}
			list = append(list, v)
			off += n
		}
		return Value{Kind: KindList, List: list}, off, nil
	case KindMap:
		count, n := bytecodec.Uvarint(buf[off:])
		if n <= 0 {
			return Value{}, 0, fmt.Errorf("docvalue: truncated map header")
		}
		off += n
		m := make(map[string]Value, count)
		for i := uint64(0); i < count; i++ {
			k, n, err := bytecodec.ReadBytes(buf[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n
			v, n, err := Decode(buf[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n
			m[string(k)] = v
		}
		return Value{Kind: KindMap, Map: m}, off, nil
	default:
		return Value{}, 0, fmt.Errorf("docvalue: unknown kind %d", kind)
	}
}
