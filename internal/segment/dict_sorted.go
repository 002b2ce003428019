package segment

import (
	"bytes"
	"sort"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/qerrors"
)

// sortedSkipEntry is one entry in the sparse in-memory skip index: every
// skipInterval-th term, paired with the byte offset of its entry in the
// dictionary body.
type sortedSkipEntry struct {
	term   []byte
	offset int64
}

// SortedDict is a sorted block file with a sparse in-memory skip index,
// the simpler of the two dictionary forms; fields with few terms use it
// on disk, larger ones use FSTDict.
type SortedDict struct {
	body          []byte // term,TermInfo pairs in sorted order
	skip          []sortedSkipEntry
	skipInterval  int
	withPositions bool
}

const defaultSkipInterval = 32

// NewSortedDictBuilder returns an empty builder; terms must be added in
// strictly increasing lexicographic order (the writer's merge step
// guarantees this since it performs a k-way merge over already-sorted
// runs).
func NewSortedDictBuilder(withPositions bool) *sortedDictBuilder {
	return &sortedDictBuilder{withPositions: withPositions, skipInterval: defaultSkipInterval}
}

type sortedDictBuilder struct {
	buf           []byte
	skip          []sortedSkipEntry
	count         int
	withPositions bool
	skipInterval  int
}

// Add appends one (term, TermInfo) entry. Terms must arrive in strictly
// increasing order.
func (b *sortedDictBuilder) Add(term []byte, ti TermInfo) {
	if b.count%b.skipInterval == 0 {
		b.skip = append(b.skip, sortedSkipEntry{term: append([]byte(nil), term...), offset: int64(len(b.buf))})
	}
	b.buf = bytecodec.PutBytes(b.buf, term)
	b.buf = EncodeTermInfo(b.buf, ti, b.withPositions)
	b.count++
}

func (b *sortedDictBuilder) Build() *SortedDict {
	return &SortedDict{body: b.buf, skip: b.skip, skipInterval: b.skipInterval, withPositions: b.withPositions}
}

// sortedDictIterator walks the dictionary body. It is always "primed":
// Active/Term/TermInfo reflect the current entry immediately, and Next
// advances to the following one, matching vellum's FSTIterator convention
// so matcher code can treat both dictionary implementations identically.
type sortedDictIterator struct {
	d      *SortedDict
	off    int64 // offset of the NEXT entry to decode
	term   []byte
	ti     TermInfo
	active bool
}

// newSortedIterator builds a primed iterator starting its scan at
// byteOffset, landing on the first entry found there (or inactive if none).
func newSortedIterator(d *SortedDict, byteOffset int64) *sortedDictIterator {
	it := &sortedDictIterator{d: d, off: byteOffset}
	it.Next()
	return it
}

func (it *sortedDictIterator) Active() bool       { return it.active }
func (it *sortedDictIterator) Term() []byte       { return it.term }
func (it *sortedDictIterator) TermInfo() TermInfo { return it.ti }

// Next decodes the entry at it.off (if any), advances it.off past it, and
// returns whether a new current entry is now active.
func (it *sortedDictIterator) Next() bool {
	if it.off >= int64(len(it.d.body)) {
		it.active = false
		return false
	}
	term, n, err := bytecodec.ReadBytes(it.d.body[it.off:])
	if err != nil {
		it.active = false
		return false
	}
	off := it.off + int64(n)
	ti, n := DecodeTermInfo(it.d.body[off:], it.d.withPositions)
	off += int64(n)
	it.term = append(it.term[:0], term...)
	it.ti = ti
	it.off = off
	it.active = true
	return true
}

// Iter returns a primed iterator over every term.
func (d *SortedDict) Iter() *sortedDictIterator {
	return newSortedIterator(d, 0)
}

// IterFrom returns a primed iterator positioned on the smallest term >=
// from, using the skip index to avoid a full linear scan.
func (d *SortedDict) IterFrom(from []byte) *sortedDictIterator {
	idx := sort.Search(len(d.skip), func(i int) bool {
		return bytes.Compare(d.skip[i].term, from) > 0
	})
	start := int64(0)
	if idx > 0 {
		start = d.skip[idx-1].offset
	}
	it := newSortedIterator(d, start)
	for it.Active() && bytes.Compare(it.Term(), from) < 0 {
		it.Next()
	}
	return it
}

// Contains reports whether term is present.
func (d *SortedDict) Contains(term []byte) bool {
	_, ok := d.Get(term)
	return ok
}

// Get looks up one term's TermInfo using the skip index plus a bounded
// linear scan within the located skip interval.
func (d *SortedDict) Get(term []byte) (TermInfo, bool) {
	it := d.IterFrom(term)
	if it.Active() && bytes.Equal(it.Term(), term) {
		return it.TermInfo(), true
	}
	return TermInfo{}, false
}

// Range iterates terms in [lo, hi], inclusivity controlled by inclLo/inclHi,
// invoking fn for each until it returns false or the range is exhausted.
// Used by Range and Prefix/Wildcard query expansion.
func (d *SortedDict) Range(lo, hi []byte, inclLo, inclHi bool, fn func(term []byte, ti TermInfo) bool) {
	it := d.IterFrom(lo)
	for it.Active() {
		if !inclLo && bytes.Equal(it.Term(), lo) {
			it.Next()
			continue
		}
		if hi != nil {
			c := bytes.Compare(it.Term(), hi)
			if c > 0 || (c == 0 && !inclHi) {
				return
			}
		}
		if !fn(it.Term(), it.TermInfo()) {
			return
		}
		it.Next()
	}
}

// WriteTo encodes the dictionary (body + skip index) to dst for persisting
// as the segment's S.trm file when the writer chooses the sorted-block
// form over the FST form.
func (d *SortedDict) WriteTo(dst []byte) []byte {
	dst = bytecodec.PutUvarint(dst, uint64(len(d.body)))
	dst = append(dst, d.body...)
	dst = bytecodec.PutUvarint(dst, uint64(len(d.skip)))
	for _, e := range d.skip {
		dst = bytecodec.PutBytes(dst, e.term)
		dst = bytecodec.PutVarint(dst, e.offset)
	}
	return dst
}

// ReadSortedDict decodes a SortedDict previously written by WriteTo.
func ReadSortedDict(buf []byte, withPositions bool) (*SortedDict, error) {
	bodyLen, n := bytecodec.Uvarint(buf)
	if n <= 0 {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated dictionary body length")
	}
	off := n
	if off+int(bodyLen) > len(buf) {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated dictionary body")
	}
	body := buf[off : off+int(bodyLen)]
	off += int(bodyLen)

	skipCount, n := bytecodec.Uvarint(buf[off:])
	if n <= 0 {
		return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated skip index")
	}
	off += n
	skip := make([]sortedSkipEntry, skipCount)
	for i := uint64(0); i < skipCount; i++ {
		term, n, err := bytecodec.ReadBytes(buf[off:])
		if err != nil {
			return nil, qerrors.Corrupt(err, "", "S.trm", "truncated skip entry term")
		}
		off += n
		o, n := bytecodec.Varint(buf[off:])
		if n <= 0 {
			return nil, qerrors.Corrupt(nil, "", "S.trm", "truncated skip entry offset")
		}
		off += n
		skip[i] = sortedSkipEntry{term: append([]byte(nil), term...), offset: o}
	}
	return &SortedDict{body: body, skip: skip, skipInterval: defaultSkipInterval, withPositions: withPositions}, nil
}
