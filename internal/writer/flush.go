package writer

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/multierr"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/segment"
)

// SegmentFiles lists the file names a segment id owns, in creation
// order. The deletion bitset is listed last and only written when
// non-empty.
func SegmentFiles(id string) []string {
	return []string{id + ".pst", id + ".trm", id + ".fln", id + ".stv", id + ".del"}
}

type countingWriter struct {
	w directory.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// SegmentData is everything WriteSegment needs to lay down one segment's
// file set. Sources yield (field, term, postings) groups in (field,
// term) order, postings ascending by doc ID across equal-key sources in
// slice order.
type SegmentData struct {
	Header        segment.Header
	Sources       []mergeSource
	Stored        []byte
	Lengths       map[string]*segment.FieldLengths
	Deleted       *roaring.Bitmap
	WithPositions func(field string) bool
	Quality       QualityFn
}

// WriteSegment performs the merged write: posting blocks first (their
// offsets feed the dictionary), then the term dictionary with the
// segment header, then lengths, stored values, and the deletion bitset.
// On any error every file written so far is deleted, leaving the
// directory as if the call never happened.
func WriteSegment(dir directory.Directory, data SegmentData) (err error) {
	id := data.Header.ID
	var written []string
	defer func() {
		if err != nil {
			for _, name := range written {
				_ = dir.Delete(name)
			}
		}
	}()

	type fieldTerms struct {
		terms [][]byte
		infos []segment.TermInfo
	}
	fields := make(map[string]*fieldTerms)
	var fieldOrder []string

	pstF, err := dir.CreateFile(id + ".pst")
	if err != nil {
		return err
	}
	written = append(written, id+".pst")
	pst := &countingWriter{w: pstF}

	err = mergeGroups(data.Sources, func(field string, term []byte, postings []segment.Posting) error {
		ft, ok := fields[field]
		if !ok {
			ft = &fieldTerms{}
			fields[field] = ft
			fieldOrder = append(fieldOrder, field)
		}
		ti, err := writeTermPostings(pst, postings, data.WithPositions(field), data.Lengths[field], data.Quality)
		if err != nil {
			return err
		}
		ft.terms = append(ft.terms, append([]byte(nil), term...))
		ft.infos = append(ft.infos, ti)
		return nil
	})
	if err != nil {
		_ = pstF.Close()
		return err
	}
	if err = pstF.Close(); err != nil {
		return err
	}

	// Term dictionary: segment header, field count, then per field the
	// name and its dictionary section, tagged with the form that wrote it
	// (sorted for up to 64 terms, FST above).
	var trmBuf []byte
	trmBuf = segment.EncodeHeader(trmBuf, data.Header)
	trmBuf = bytecodec.PutUvarint(trmBuf, uint64(len(fieldOrder)))
	for _, field := range fieldOrder {
		ft := fields[field]
		trmBuf = bytecodec.PutBytes(trmBuf, []byte(field))
		trmBuf, err = segment.WriteDictSection(trmBuf, data.WithPositions(field), ft.terms, ft.infos)
		if err != nil {
			return err
		}
	}
	if err = writeFile(dir, id+".trm", trmBuf, &written); err != nil {
		return err
	}

	var flnBuf []byte
	lengthFields := make([]string, 0, len(data.Lengths))
	for name := range data.Lengths {
		lengthFields = append(lengthFields, name)
	}
	sort.Strings(lengthFields)
	for _, name := range lengthFields {
		flnBuf = bytecodec.PutBytes(flnBuf, []byte(name))
		flnBuf = append(flnBuf, data.Lengths[name].Bytes()...)
	}
	if err = writeFile(dir, id+".fln", flnBuf, &written); err != nil {
		return err
	}

	if err = writeFile(dir, id+".stv", data.Stored, &written); err != nil {
		return err
	}

	if data.Deleted != nil && !data.Deleted.IsEmpty() {
		delBuf, merr := data.Deleted.MarshalBinary()
		if merr != nil {
			return merr
		}
		if err = writeFile(dir, id+".del", delBuf, &written); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(dir directory.Directory, name string, contents []byte, written *[]string) error {
	f, err := dir.CreateFile(name)
	if err != nil {
		return err
	}
	*written = append(*written, name)
	if _, err := f.Write(contents); err != nil {
		return multierr.Append(err, f.Close())
	}
	return f.Close()
}

// writeTermPostings block-encodes one term's merged posting list,
// returning its dictionary entry. Single-posting terms are inlined.
func writeTermPostings(pst *countingWriter, postings []segment.Posting, withPositions bool, lengths *segment.FieldLengths, quality QualityFn) (segment.TermInfo, error) {
	ti := segment.TermInfo{DF: uint64(len(postings))}
	for _, p := range postings {
		ti.CF += uint64(p.TF)
	}

	if len(postings) == 1 {
		p := postings[0]
		ti.InlinePosting = &p
		hdr := segment.BlockHeader{BaseDocID: p.DocID, Count: 1, MaxDocID: p.DocID, MaxTF: p.TF, MaxFieldLength: lengths.RawByte(p.DocID)}
		ti.MaxQuality = quality(hdr)
		return ti, nil
	}

	lengthAt := func(docID uint32) byte { return lengths.RawByte(docID) }
	var prevLastDoc uint32
	var buf []byte
	for start := 0; start < len(postings); start += segment.MaxBlockSize {
		end := start + segment.MaxBlockSize
		if end > len(postings) {
			end = len(postings)
		}
		var hdr segment.BlockHeader
		buf, hdr = segment.EncodeBlock(buf[:0], postings[start:end], prevLastDoc, withPositions, lengthAt)
		offset := pst.n
		if _, err := pst.Write(buf); err != nil {
			return segment.TermInfo{}, err
		}
		q := quality(hdr)
		if q > ti.MaxQuality {
			ti.MaxQuality = q
		}
		ti.Blocks = append(ti.Blocks, segment.BlockPointer{
			Offset:  offset,
			Length:  int32(len(buf)),
			LastDoc: hdr.MaxDocID,
			Header:  hdr,
		})
		prevLastDoc = hdr.MaxDocID
	}
	return ti, nil
}

// mergeGroups drives the k-way merge: at each step the least (field,
// term) key across active sources is selected, postings from every
// source carrying that key are concatenated in source order, and emit is
// invoked once per distinct key.
func mergeGroups(sources []mergeSource, emit func(field string, term []byte, postings []segment.Posting) error) error {
	active := make([]mergeSource, 0, len(sources))
	for _, s := range sources {
		if s.Active() {
			active = append(active, s)
		}
	}
	for len(active) > 0 {
		min := active[0]
		for _, s := range active[1:] {
			if sourceLess(s, min) {
				min = s
			}
		}
		field := min.Field()
		term := append([]byte(nil), min.Term()...)

		var postings []segment.Posting
		for _, s := range active {
			if sourceEqual(s, min) {
				postings = append(postings, s.Postings()...)
			}
		}
		if err := emit(field, term, postings); err != nil {
			return err
		}

		next := active[:0]
		for _, s := range active {
			if s.Field() == field && string(s.Term()) == string(term) {
				if err := s.Next(); err != nil {
					return err
				}
			}
			if s.Active() {
				next = append(next, s)
			}
		}
		active = next
	}
	return nil
}

// Flush k-way merges spilled runs with the in-memory tail and writes the
// segment's file set, then removes the run files. The writer is spent
// afterwards.
func (w *SegmentWriter) Flush(id string, generation uint64) (segment.Header, error) {
	hdr, err := w.writeTo(w.dir, id, generation)
	for _, name := range w.runs {
		_ = w.dir.Delete(name)
	}
	w.runs = nil
	if err != nil {
		return segment.Header{}, err
	}
	w.log.Infow("flushed segment", "segment", id, "generation", generation, "docs", hdr.DocCount)
	return hdr, nil
}

// WriteTo writes the buffered state as a segment into an arbitrary
// directory without consuming the buffer, which is how the buffered
// coordinator materializes an overlay the on-disk snapshot can union
// with.
func (w *SegmentWriter) WriteTo(dir directory.Directory, id string, generation uint64) (segment.Header, error) {
	return w.writeTo(dir, id, generation)
}

func (w *SegmentWriter) writeTo(dir directory.Directory, id string, generation uint64) (segment.Header, error) {
	hdr := segment.Header{
		ID:         id,
		Generation: generation,
		DocCount:   int(w.docCount),
		SchemaFP:   w.sch.Fingerprint(),
	}

	sources := make([]mergeSource, 0, len(w.runs)+1)
	var closers []directory.Reader
	for _, name := range w.runs {
		r, err := w.dir.OpenFile(name)
		if err != nil {
			return segment.Header{}, err
		}
		closers = append(closers, r)
		src, err := newRunSource(r)
		if err != nil {
			return segment.Header{}, err
		}
		sources = append(sources, src)
	}
	sources = append(sources, newMemSource(w))

	lengths := make(map[string]*segment.FieldLengths)
	for field, byDoc := range w.lengths {
		b := segment.NewFieldLengthsBuilder(int(w.docCount))
		for docID, l := range byDoc {
			b.Set(docID, l)
		}
		lengths[field] = b.Build()
	}

	err := WriteSegment(dir, SegmentData{
		Header:  hdr,
		Sources: sources,
		Stored:  w.stored,
		Lengths: lengths,
		Deleted: w.deleted,
		WithPositions: func(field string) bool {
			k, ok := w.sch.Field(field)
			return ok && k.Positions
		},
		Quality: w.quality,
	})
	for _, c := range closers {
		_ = c.Close()
	}
	return hdr, err
}
