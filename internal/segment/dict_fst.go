package segment

import (
	"bytes"

	"github.com/blevesearch/vellum"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/qerrors"
)

// FSTDict is the finite-state-transducer dictionary form, used for
// fields with many terms: term bytes map to a uint64 ordinal, and the
// ordinal indexes into a side table of encoded TermInfo records (vellum
// FST values are a single uint64, not arbitrary bytes, so they cannot
// hold a TermInfo directly). Single-posting terms still inline their
// posting in the side table entry, exactly as SortedDict does.
type FSTDict struct {
	fst           *vellum.FST
	fstBytes      []byte   // serialized FST, as produced or read by WriteTo/ReadFSTDict
	entries       [][]byte // TermInfo-encoded entries, indexed by ordinal
	withPositions bool
}

// BuildFSTDict constructs an FSTDict from terms supplied in strictly
// increasing lexicographic order, as the writer's merge step guarantees.
func BuildFSTDict(withPositions bool, terms [][]byte, infos []TermInfo) (*FSTDict, error) {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "create FST builder")
	}
	entries := make([][]byte, len(terms))
	for i, term := range terms {
		entries[i] = EncodeTermInfo(nil, infos[i], withPositions)
		if err := builder.Insert(term, uint64(i)); err != nil {
			return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "insert FST term")
		}
	}
	if err := builder.Close(); err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "close FST builder")
	}
	fstBytes := append([]byte(nil), buf.Bytes()...)
	fst, err := vellum.Load(fstBytes)
	if err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "load FST")
	}
	return &FSTDict{fst: fst, fstBytes: fstBytes, entries: entries, withPositions: withPositions}, nil
}

// WriteTo serializes the FST bytes plus the side value table.
func (d *FSTDict) WriteTo(dst []byte) ([]byte, error) {
	raw := d.fstBytes
	dst = bytecodec.PutUvarint(dst, uint64(len(raw)))
	dst = append(dst, raw...)
	dst = bytecodec.PutUvarint(dst, uint64(len(d.entries)))
	for _, e := range d.entries {
		dst = bytecodec.PutBytes(dst, e)
	}
	return dst, nil
}

// ReadFSTDict decodes an FSTDict previously written by WriteTo.
func ReadFSTDict(buf []byte, withPositions bool) (*FSTDict, error) {
	fstLen, n := bytecodec.Uvarint(buf)
	if n <= 0 {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated FST length")
	}
	off := n
	if off+int(fstLen) > len(buf) {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated FST bytes")
	}
	fstBytes := buf[off : off+int(fstLen)]
	fst, err := vellum.Load(fstBytes)
	if err != nil {
		return nil, qerrors.Corrupt(err, "", "S.trm", "invalid FST encoding")
	}
	off += int(fstLen)

	count, n := bytecodec.Uvarint(buf[off:])
	if n <= 0 {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated value table length")
	}
	off += n
	entries := make([][]byte, count)
	for i := uint64(0); i < count; i++ {
		e, n, err := bytecodec.ReadBytes(buf[off:])
		if err != nil {
			return nil, qerrors.Corrupt(err, "", "S.trm", "truncated value table entry")
		}
		entries[i] = append([]byte(nil), e...)
		off += n
	}
	return &FSTDict{fst: fst, fstBytes: fstBytes, entries: entries, withPositions: withPositions}, nil
}

func (d *FSTDict) Get(term []byte) (TermInfo, bool) {
	ord, exists, err := d.fst.Get(term)
	if err != nil || !exists {
		return TermInfo{}, false
	}
	if int(ord) >= len(d.entries) {
		return TermInfo{}, false
	}
	ti, _ := DecodeTermInfo(d.entries[ord], d.withPositions)
	return ti, true
}

func (d *FSTDict) Contains(term []byte) bool {
	_, ok := d.Get(term)
	return ok
}

// FSTIterator walks terms in lexicographic order within an optional
// [start, end) range, used for prefix/wildcard/range dictionary
// expansion.
type FSTIterator struct {
	d    *FSTDict
	it   *vellum.FSTIterator
	done bool
}

// iteratorRaw returns the concrete FST iterator over [start, end); either
// bound may be nil for an unbounded side. Wrapped as a DictIterator by
// FSTDict.Iterator in dict.go.
func (d *FSTDict) iteratorRaw(start, end []byte) (*FSTIterator, error) {
	it, err := d.fst.Iterator(start, end)
	if err == vellum.ErrIteratorDone {
		return &FSTIterator{d: d, done: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &FSTIterator{d: d, it: it}, nil
}

func (fi *FSTIterator) Active() bool { return !fi.done }

func (fi *FSTIterator) Current() ([]byte, TermInfo) {
	term, ord := fi.it.Current()
	ti, _ := DecodeTermInfo(fi.d.entries[ord], fi.d.withPositions)
	return term, ti
}

// Term and TermInfo expose the same current position as Current, in the
// shape DictIterator (used by matcher's dictionary-expansion queries)
// expects regardless of which dictionary implementation backs it.
func (fi *FSTIterator) Term() []byte {
	term, _ := fi.it.Current()
	return term
}

func (fi *FSTIterator) TermInfo() TermInfo {
	_, ti := fi.Current()
	return ti
}

func (fi *FSTIterator) Next() bool {
	if fi.done {
		return false
	}
	if err := fi.it.Next(); err != nil {
		fi.done = true
		return false
	}
	return true
}
