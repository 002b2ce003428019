package writer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/lengthnorm"
	"github.com/quillsearch/quill/internal/segment"
)

// readerSource adapts a committed segment into the merge stream: it
// walks the segment's fields in sorted order and each field's dictionary
// in term order, decoding postings, dropping tombstoned docs, and
// remapping survivors into the merged segment's doc-ID space.
type readerSource struct {
	r      *segment.Reader
	remap  []int64 // old local ID -> new local ID, -1 for deleted
	fields []string
	fi     int
	it     segment.DictIterator

	field    string
	term     []byte
	postings []segment.Posting
	active   bool
}

func newReaderSource(r *segment.Reader, remap []int64) (*readerSource, error) {
	fields := r.Fields()
	sort.Strings(fields)
	s := &readerSource{r: r, remap: remap, fields: fields, fi: -1}
	if err := s.Next(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *readerSource) Active() bool                { return s.active }
func (s *readerSource) Field() string               { return s.field }
func (s *readerSource) Term() []byte                { return s.term }
func (s *readerSource) Postings() []segment.Posting { return s.postings }

// Next advances to the next term carrying at least one live posting,
// crossing field boundaries as dictionaries are exhausted.
func (s *readerSource) Next() error {
	for {
		for s.it == nil || !s.it.Active() {
			s.fi++
			if s.fi >= len(s.fields) {
				s.active = false
				return nil
			}
			it, ok := s.r.Terms(s.fields[s.fi])
			if !ok {
				continue
			}
			s.it = it
		}

		field := s.fields[s.fi]
		term := append([]byte(nil), s.it.Term()...)
		postings, err := s.livePostings(field, s.it.TermInfo())
		if err != nil {
			return err
		}
		s.it.Next()
		if len(postings) == 0 {
			continue // every posting tombstoned; term drops out
		}
		s.field = field
		s.term = append(s.term[:0], term...)
		s.postings = postings
		s.active = true
		return nil
	}
}

func (s *readerSource) livePostings(field string, ti segment.TermInfo) ([]segment.Posting, error) {
	var out []segment.Posting
	appendLive := func(p segment.Posting) {
		newID := s.remap[p.DocID]
		if newID < 0 {
			return
		}
		p.DocID = uint32(newID)
		out = append(out, p)
	}
	if ti.InlinePosting != nil {
		appendLive(*ti.InlinePosting)
		return out, nil
	}
	var prevLastDoc uint32
	for _, bp := range ti.Blocks {
		postings, _, err := s.r.DecodeBlockAt(field, bp, prevLastDoc)
		if err != nil {
			return nil, err
		}
		prevLastDoc = bp.LastDoc
		for _, p := range postings {
			appendLive(p)
		}
	}
	return out, nil
}

// MergeSegments rewrites the given segments as one, dropping tombstoned
// documents and renumbering the survivors densely in segment order. The
// sources are left untouched; unlinking them is the committer's job once
// the new table of contents lands.
func MergeSegments(dir directory.Directory, readers []*segment.Reader, hdr segment.Header, quality QualityFn, log *zap.SugaredLogger) (segment.Header, error) {
	if quality == nil {
		quality = DefaultQuality
	}

	// Dense renumbering: live docs keep their relative order, segment by
	// segment.
	remaps := make([][]int64, len(readers))
	var nextID int64
	for i, r := range readers {
		remap := make([]int64, r.DocCountAll())
		for d := 0; d < r.DocCountAll(); d++ {
			if r.IsDeleted(uint32(d)) {
				remap[d] = -1
			} else {
				remap[d] = nextID
				nextID++
			}
		}
		remaps[i] = remap
	}
	hdr.DocCount = int(nextID)

	sources := make([]mergeSource, 0, len(readers))
	positionFields := make(map[string]bool)
	for i, r := range readers {
		src, err := newReaderSource(r, remaps[i])
		if err != nil {
			return segment.Header{}, err
		}
		sources = append(sources, src)
		for _, f := range r.Fields() {
			if r.FieldHasPositions(f) {
				positionFields[f] = true
			}
		}
	}

	var stored []byte
	for i, r := range readers {
		for d := 0; d < r.DocCountAll(); d++ {
			if remaps[i][d] < 0 {
				continue
			}
			doc, err := r.StoredFields(uint32(d))
			if err != nil {
				return segment.Header{}, err
			}
			stored = segment.EncodeStored(stored, doc)
		}
	}

	lengthFields := make(map[string]bool)
	for _, r := range readers {
		for _, f := range r.LengthFields() {
			lengthFields[f] = true
		}
	}
	lengths := make(map[string]*segment.FieldLengths, len(lengthFields))
	for field := range lengthFields {
		b := segment.NewFieldLengthsBuilder(hdr.DocCount)
		for i, r := range readers {
			for d := 0; d < r.DocCountAll(); d++ {
				newID := remaps[i][d]
				if newID < 0 {
					continue
				}
				if raw, ok := r.FieldLengthByte(uint32(d), field); ok {
					b.Set(uint32(newID), lengthnorm.Decode(raw))
				}
			}
		}
		lengths[field] = b.Build()
	}

	err := WriteSegment(dir, SegmentData{
		Header:        hdr,
		Sources:       sources,
		Stored:        stored,
		Lengths:       lengths,
		WithPositions: func(field string) bool { return positionFields[field] },
		Quality:       quality,
	})
	if err != nil {
		return segment.Header{}, err
	}
	if log != nil {
		log.Infow("merged segments", "segment", hdr.ID, "sources", len(readers), "docs", hdr.DocCount)
	}
	return hdr, nil
}
