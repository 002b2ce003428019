package segment

import (
	"bytes"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/qerrors"
)

// DictIterator is the common iteration contract both dictionary
// implementations expose, used by matcher's dictionary-expansion queries
// (prefix/wildcard/range/fuzzy) so they don't care which concrete
// term dictionary backs a field. It is always primed: Active/Term/TermInfo
// reflect the current entry immediately after construction, and Next
// advances to the following one.
type DictIterator interface {
	Active() bool
	Term() []byte
	TermInfo() TermInfo
	Next() bool
}

// Dict is the lookup/iteration contract every term dictionary
// implementation satisfies.
type Dict interface {
	Get(term []byte) (TermInfo, bool)
	Contains(term []byte) bool
	Iterator(start, end []byte) (DictIterator, error)
}

// boundedIterator wraps a primed DictIterator so it reports inactive once
// the cursor passes an (exclusive) end bound.
type boundedIterator struct {
	it  DictIterator
	end []byte
}

func (b *boundedIterator) Active() bool {
	if !b.it.Active() {
		return false
	}
	if b.end != nil && bytes.Compare(b.it.Term(), b.end) >= 0 {
		return false
	}
	return true
}
func (b *boundedIterator) Term() []byte       { return b.it.Term() }
func (b *boundedIterator) TermInfo() TermInfo { return b.it.TermInfo() }
func (b *boundedIterator) Next() bool {
	if !b.it.Next() {
		return false
	}
	return b.Active()
}

// Iterator returns a DictIterator over [start, end); either bound may be
// nil for an unbounded side.
func (d *SortedDict) Iterator(start, end []byte) (DictIterator, error) {
	var it *sortedDictIterator
	if start == nil {
		it = d.Iter()
	} else {
		it = d.IterFrom(start)
	}
	return &boundedIterator{it: it, end: end}, nil
}

// Iterator returns a DictIterator over [start, end) for the FST dictionary.
func (d *FSTDict) Iterator(start, end []byte) (DictIterator, error) {
	fi, err := d.iteratorRaw(start, end)
	if err != nil {
		return nil, err
	}
	return &boundedIterator{it: fi, end: nil}, nil // end already bounds vellum's own range
}

// On-disk dictionary sections are tagged with the implementation that
// wrote them, so small fields can use the plain sorted form (cheaper to
// build and read) while large fields get the FST.
const (
	dictFormatSorted = byte(0)
	dictFormatFST    = byte(1)

	// sortedDictMaxTerms is the cutover point between the two forms.
	sortedDictMaxTerms = 64
)

// WriteDictSection appends one field's dictionary as a tagged,
// length-prefixed section. Terms must arrive in strictly increasing
// order.
func WriteDictSection(dst []byte, withPositions bool, terms [][]byte, infos []TermInfo) ([]byte, error) {
	var body []byte
	var tag byte
	if len(terms) <= sortedDictMaxTerms {
		tag = dictFormatSorted
		b := NewSortedDictBuilder(withPositions)
		for i, term := range terms {
			b.Add(term, infos[i])
		}
		body = b.Build().WriteTo(nil)
	} else {
		tag = dictFormatFST
		fst, err := BuildFSTDict(withPositions, terms, infos)
		if err != nil {
			return nil, err
		}
		body, err = fst.WriteTo(nil)
		if err != nil {
			return nil, err
		}
	}
	dst = append(dst, tag)
	dst = bytecodec.PutUvarint(dst, uint64(len(body)))
	return append(dst, body...), nil
}

// ReadDictSection decodes a tagged dictionary section, returning the
// dictionary and the number of bytes consumed.
func ReadDictSection(buf []byte, withPositions bool) (Dict, int, error) {
	if len(buf) < 1 {
		return nil, 0, qerrors.Corrupt(nil, "", "S.trm", "truncated dictionary tag")
	}
	tag := buf[0]
	bodyLen, n := bytecodec.Uvarint(buf[1:])
	if n <= 0 {
		return nil, 0, qerrors.Corrupt(nil, "", "S.trm", "truncated dictionary length")
	}
	off := 1 + n
	end := off + int(bodyLen)
	if end > len(buf) {
		return nil, 0, qerrors.Corrupt(nil, "", "S.trm", "truncated dictionary body")
	}
	var d Dict
	var err error
	switch tag {
	case dictFormatSorted:
		d, err = ReadSortedDict(buf[off:end], withPositions)
	case dictFormatFST:
		d, err = ReadFSTDict(buf[off:end], withPositions)
	default:
		return nil, 0, qerrors.Corrupt(nil, "", "S.trm", "unknown dictionary format tag")
	}
	if err != nil {
		return nil, 0, err
	}
	return d, end, nil
}
