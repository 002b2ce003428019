package segment

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/schema"
)

// fieldDictEntry pairs one field's dictionary implementation with whether
// that field carries positions, needed to decode its posting blocks.
type fieldDictEntry struct {
	dict      Dict
	positions bool
}

// Reader is a read-only, snapshot-consistent view over one committed
// segment: it binds to the directory's files at open time and
// is unaffected by concurrent deletion-bit updates made by other Reader
// instances opened later. Mutating the deletion bitset requires reopening
// for a Reader to observe it.
type Reader struct {
	Header Header

	dir     directory.Directory
	dicts   map[string]fieldDictEntry
	pst     directory.Reader
	stored  *StoredStore
	lengths map[string]*FieldLengths
	deleted *roaring.Bitmap
}

// Open reads S.trm, S.fln, S.stv, and (if present) S.del for segment id,
// binding this Reader to those file contents for its entire lifetime.
func Open(dir directory.Directory, id string, sch *schema.Schema) (*Reader, error) {
	trm, err := dir.OpenFile(id + ".trm")
	if err != nil {
		return nil, err
	}
	defer trm.Close()
	trmBuf := make([]byte, trm.Size())
	if _, err := trm.ReadAt(trmBuf, 0); err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "read S.trm").WithFileName(id + ".trm")
	}

	hdr, n, err := DecodeHeader(trmBuf)
	if err != nil {
		return nil, qerrors.Corrupt(err, id, id+".trm", "invalid segment header")
	}
	off := n

	dicts := make(map[string]fieldDictEntry)
	fieldCount, n := bytecodec.Uvarint(trmBuf[off:])
	off += n
	for i := uint64(0); i < fieldCount; i++ {
		name, n, err := bytecodec.ReadBytes(trmBuf[off:])
		if err != nil {
			return nil, qerrors.Corrupt(err, id, id+".trm", "truncated field dictionary name")
		}
		off += n
		kind, ok := sch.Field(string(name))
		withPositions := ok && kind.Positions

		dict, consumed, err := ReadDictSection(trmBuf[off:], withPositions)
		if err != nil {
			return nil, err
		}
		off += consumed
		dicts[string(name)] = fieldDictEntry{dict: dict, positions: withPositions}
	}

	pst, err := dir.OpenFile(id + ".pst")
	if err != nil {
		return nil, err
	}

	stvR, err := dir.OpenFile(id + ".stv")
	if err != nil {
		pst.Close()
		return nil, err
	}
	stvBuf := make([]byte, stvR.Size())
	if _, err := stvR.ReadAt(stvBuf, 0); err != nil {
		pst.Close()
		stvR.Close()
		return nil, err
	}
	stvR.Close()
	stored, err := LoadStoredStore(stvBuf, hdr.DocCount)
	if err != nil {
		pst.Close()
		return nil, err
	}

	flnR, err := dir.OpenFile(id + ".fln")
	if err != nil {
		pst.Close()
		return nil, err
	}
	flnBuf := make([]byte, flnR.Size())
	if _, err := flnR.ReadAt(flnBuf, 0); err != nil {
		pst.Close()
		flnR.Close()
		return nil, err
	}
	flnR.Close()
	lengths, err := decodeLengths(flnBuf, hdr.DocCount)
	if err != nil {
		pst.Close()
		return nil, err
	}

	deleted := roaring.New()
	if delR, err := dir.OpenFile(id + ".del"); err == nil {
		delBuf := make([]byte, delR.Size())
		_, _ = delR.ReadAt(delBuf, 0)
		delR.Close()
		if err := deleted.UnmarshalBinary(delBuf); err != nil {
			return nil, qerrors.Corrupt(err, id, id+".del", "invalid deletion bitmap")
		}
	} else if !qerrors.IsNotFound(err) {
		pst.Close()
		return nil, err
	}

	return &Reader{
		Header:  hdr,
		dir:     dir,
		dicts:   dicts,
		pst:     pst,
		stored:  stored,
		lengths: lengths,
		deleted: deleted,
	}, nil
}

func decodeLengths(buf []byte, docCount int) (map[string]*FieldLengths, error) {
	out := make(map[string]*FieldLengths)
	off := 0
	for off < len(buf) {
		name, n, err := bytecodec.ReadBytes(buf[off:])
		if err != nil {
			return nil, qerrors.Corrupt(err, "", "S.fln", "truncated field name")
		}
		off += n
		if off+docCount > len(buf) {
			return nil, qerrors.Corrupt(nil, "", "S.fln", "truncated length array")
		}
		out[string(name)] = LoadFieldLengths(append([]byte(nil), buf[off:off+docCount]...))
		off += docCount
	}
	return out, nil
}

// Terms returns an iterator over every term indexed for field, or
// ok=false if the field has no postings in this segment.
func (r *Reader) Terms(field string) (DictIterator, bool) {
	e, ok := r.dicts[field]
	if !ok {
		return nil, false
	}
	it, err := e.dict.Iterator(nil, nil)
	if err != nil {
		return nil, false
	}
	return it, true
}

// TermInfo looks up one term's dictionary entry.
func (r *Reader) TermInfo(field string, term []byte) (TermInfo, bool) {
	e, ok := r.dicts[field]
	if !ok {
		return TermInfo{}, false
	}
	return e.dict.Get(term)
}

// FieldDict returns the raw Dict for field, used by matcher's dictionary-
// expansion queries (prefix/wildcard/range/fuzzy) to call Iterator
// directly with specific bounds.
func (r *Reader) FieldDict(field string) (Dict, bool) {
	e, ok := r.dicts[field]
	if !ok {
		return nil, false
	}
	return e.dict, true
}

// FieldHasPositions reports whether field's postings carry positions.
func (r *Reader) FieldHasPositions(field string) bool {
	e, ok := r.dicts[field]
	return ok && e.positions
}

// DecodeBlockAt decodes the block at bp within field's posting store.
func (r *Reader) DecodeBlockAt(field string, bp BlockPointer, prevLastDoc uint32) ([]Posting, BlockHeader, error) {
	buf := make([]byte, bp.Length)
	if _, err := r.pst.ReadAt(buf, bp.Offset); err != nil {
		return nil, BlockHeader{}, qerrors.NewStorageError(err, qerrors.KindInternal, "read posting block").WithOffset(bp.Offset)
	}
	postings, hdr, _ := DecodeBlock(buf, prevLastDoc, r.FieldHasPositions(field))
	return postings, hdr, nil
}

// StoredFields returns the stored field values for a local doc ID.
func (r *Reader) StoredFields(docID uint32) (StoredDoc, error) {
	return r.stored.Get(docID)
}

// DocFieldLength returns the decoded length of field for docID, or def if
// absent.
func (r *Reader) DocFieldLength(docID uint32, field string, def uint32) uint32 {
	fl, ok := r.lengths[field]
	if !ok {
		return def
	}
	return fl.At(docID, def)
}

// FieldLengthByte returns the raw encoded length byte for a (doc, field)
// pair, used by segment merging to carry lengths across without a
// decode/re-encode round trip.
func (r *Reader) FieldLengthByte(docID uint32, field string) (byte, bool) {
	fl, ok := r.lengths[field]
	if !ok {
		return 0, false
	}
	return fl.RawByte(docID), true
}

// LengthFields returns the names of fields carrying a length vector in
// this segment.
func (r *Reader) LengthFields() []string {
	out := make([]string, 0, len(r.lengths))
	for name := range r.lengths {
		out = append(out, name)
	}
	return out
}

// Fields returns the names of fields with at least one indexed term in
// this segment.
func (r *Reader) Fields() []string {
	out := make([]string, 0, len(r.dicts))
	for name := range r.dicts {
		out = append(out, name)
	}
	return out
}

// FieldLength returns the average field length collection statistic used
// by BM25F, or 0 if the field carries no length vector in this segment.
func (r *Reader) FieldLength(field string) float64 {
	fl, ok := r.lengths[field]
	if !ok {
		return 0
	}
	return fl.Average()
}

// DocCount returns the number of non-deleted documents.
func (r *Reader) DocCount() int {
	return r.Header.DocCount - int(r.deleted.GetCardinality())
}

// DocCountAll returns the total document count, deleted or not.
func (r *Reader) DocCountAll() int {
	return r.Header.DocCount
}

// IsDeleted reports whether docID has been tombstoned.
func (r *Reader) IsDeleted(docID uint32) bool {
	return r.deleted.Contains(docID)
}

// HasDeletions reports whether this segment has any tombstones at all.
func (r *Reader) HasDeletions() bool {
	return !r.deleted.IsEmpty()
}

// DeletedBitmap exposes the raw roaring bitmap so collector Filter/Mask
// wrappers can intersect/subtract it directly.
func (r *Reader) DeletedBitmap() *roaring.Bitmap {
	return r.deleted
}

// Close releases the posting-block file handle. Stored/length data was
// read wholesale at Open and needs no further handle.
func (r *Reader) Close() error {
	return r.pst.Close()
}
