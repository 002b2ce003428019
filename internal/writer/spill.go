package writer

import (
	"bytes"
	"io"
	"sort"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/segment"
)

// Run record layout: field bytes, term bytes (both length-prefixed), a
// posting count, then per posting a doc-ID delta (absolute for the
// first), tf, and a delta-coded position list. Records are sorted by
// (field, term) within a run, which is what lets flush stream a k-way
// merge over runs without materializing any of them.

func encodeRunRecord(dst []byte, field string, term []byte, postings []segment.Posting) []byte {
	dst = bytecodec.PutBytes(dst, []byte(field))
	dst = bytecodec.PutBytes(dst, term)
	dst = bytecodec.PutUvarint(dst, uint64(len(postings)))
	var prevDoc uint32
	for i, p := range postings {
		if i == 0 {
			dst = bytecodec.PutUvarint(dst, uint64(p.DocID))
		} else {
			dst = bytecodec.PutUvarint(dst, uint64(p.DocID-prevDoc))
		}
		prevDoc = p.DocID
		dst = bytecodec.PutUvarint(dst, uint64(p.TF))
		dst = bytecodec.PutUvarint(dst, uint64(len(p.Positions)))
		var prevPos uint32
		for _, pos := range p.Positions {
			dst = bytecodec.PutUvarint(dst, uint64(pos-prevPos))
			prevPos = pos
		}
	}
	return dst
}

// fileScanner adapts a directory.Reader into a buffered sequential
// io.ByteReader so run records can be decoded without loading the run.
type fileScanner struct {
	r   directory.Reader
	off int64
	buf []byte
	pos int
	n   int
}

func newFileScanner(r directory.Reader) *fileScanner {
	return &fileScanner{r: r, buf: make([]byte, 64<<10)}
}

func (s *fileScanner) ReadByte() (byte, error) {
	if s.pos >= s.n {
		if err := s.refill(); err != nil {
			return 0, err
		}
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

func (s *fileScanner) refill() error {
	remaining := s.r.Size() - s.off
	if remaining <= 0 {
		return io.EOF
	}
	n := int64(len(s.buf))
	if remaining < n {
		n = remaining
	}
	if _, err := s.r.ReadAt(s.buf[:n], s.off); err != nil {
		return err
	}
	s.off += n
	s.pos = 0
	s.n = int(n)
	return nil
}

func (s *fileScanner) readFull(p []byte) error {
	for i := range p {
		b, err := s.ReadByte()
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}

func (s *fileScanner) readBytes() ([]byte, error) {
	n, err := bytecodec.ReadUvarint(s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if err := s.readFull(out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeSource yields (field, term, postings) groups in (field, term)
// order. Sources are primed at construction: Active reflects whether a
// current group exists.
type mergeSource interface {
	Active() bool
	Field() string
	Term() []byte
	Postings() []segment.Posting
	Next() error
}

// runSource streams one spilled run.
type runSource struct {
	sc       *fileScanner
	closer   io.Closer
	field    string
	term     []byte
	postings []segment.Posting
	active   bool
}

func newRunSource(r directory.Reader) (*runSource, error) {
	s := &runSource{sc: newFileScanner(r), closer: r}
	if err := s.Next(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *runSource) Active() bool                { return s.active }
func (s *runSource) Field() string               { return s.field }
func (s *runSource) Term() []byte                { return s.term }
func (s *runSource) Postings() []segment.Posting { return s.postings }

func (s *runSource) Next() error {
	field, err := s.sc.readBytes()
	if err == io.EOF {
		s.active = false
		return nil
	}
	if err != nil {
		return err
	}
	term, err := s.sc.readBytes()
	if err != nil {
		return err
	}
	count, err := bytecodec.ReadUvarint(s.sc)
	if err != nil {
		return err
	}
	postings := make([]segment.Posting, count)
	var prevDoc uint32
	for i := range postings {
		d, err := bytecodec.ReadUvarint(s.sc)
		if err != nil {
			return err
		}
		if i == 0 {
			prevDoc = uint32(d)
		} else {
			prevDoc += uint32(d)
		}
		tf, err := bytecodec.ReadUvarint(s.sc)
		if err != nil {
			return err
		}
		pc, err := bytecodec.ReadUvarint(s.sc)
		if err != nil {
			return err
		}
		var positions []uint32
		if pc > 0 {
			positions = make([]uint32, pc)
			var prevPos uint32
			for j := range positions {
				pd, err := bytecodec.ReadUvarint(s.sc)
				if err != nil {
					return err
				}
				prevPos += uint32(pd)
				positions[j] = prevPos
			}
		}
		postings[i] = segment.Posting{DocID: prevDoc, TF: uint32(tf), Positions: positions}
	}
	s.field = string(field)
	s.term = term
	s.postings = postings
	s.active = true
	return nil
}

// memSource iterates the in-memory accumulator tail in sorted key order.
type memSource struct {
	w    *SegmentWriter
	keys []string
	idx  int
}

func newMemSource(w *SegmentWriter) *memSource {
	keys := make([]string, 0, len(w.postings))
	for k := range w.postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &memSource{w: w, keys: keys}
}

func (s *memSource) Active() bool { return s.idx < len(s.keys) }

func (s *memSource) Field() string {
	f, _ := splitAccKey(s.keys[s.idx])
	return f
}

func (s *memSource) Term() []byte {
	_, t := splitAccKey(s.keys[s.idx])
	return t
}

func (s *memSource) Postings() []segment.Posting {
	return s.w.postings[s.keys[s.idx]].postings
}

func (s *memSource) Next() error {
	s.idx++
	return nil
}

// sourceLess orders sources by (field, term); ties are broken by the
// caller keeping sources in spill order, so a term split across runs
// concatenates with ascending doc IDs.
func sourceLess(a, b mergeSource) bool {
	if a.Field() != b.Field() {
		return a.Field() < b.Field()
	}
	return bytes.Compare(a.Term(), b.Term()) < 0
}

func sourceEqual(a, b mergeSource) bool {
	return a.Field() == b.Field() && bytes.Equal(a.Term(), b.Term())
}
