package segment

import (
	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/packedints"
	"github.com/quillsearch/quill/internal/qerrors"
)

// StoredDoc is the stored-field payload for one document: a mapping of
// field name to its docvalue.Value representation.
type StoredDoc map[string]docvalue.Value

// EncodeStored appends one length-prefixed stored record.
func EncodeStored(dst []byte, doc StoredDoc) []byte {
	var body []byte
	body = bytecodec.PutUvarint(body, uint64(len(doc)))
	for name, v := range doc {
		body = bytecodec.PutBytes(body, []byte(name))
		body = docvalue.Encode(body, v)
	}
	dst = bytecodec.PutUvarint(dst, uint64(len(body)))
	dst = append(dst, body...)
	return dst
}

// DecodeStored reads one length-prefixed stored record, returning the
// value and bytes consumed.
func DecodeStored(buf []byte) (StoredDoc, int, error) {
	recLen, n := bytecodec.Uvarint(buf)
	if n <= 0 {
		return nil, 0, qerrors.Corrupt(nil, "", "S.stv", "truncated stored record length")
	}
	off := n
	if off+int(recLen) > len(buf) {
		return nil, 0, qerrors.Corrupt(nil, "", "S.stv", "truncated stored record body")
	}
	body := buf[off : off+int(recLen)]
	total := off + int(recLen)

	pos := 0
	count, n := bytecodec.Uvarint(body[pos:])
	if n <= 0 {
		return nil, 0, qerrors.Corrupt(nil, "", "S.stv", "truncated stored field count")
	}
	pos += n
	doc := make(StoredDoc, count)
	for i := uint64(0); i < count; i++ {
		name, n, err := bytecodec.ReadBytes(body[pos:])
		if err != nil {
			return nil, 0, qerrors.Corrupt(err, "", "S.stv", "truncated stored field name")
		}
		pos += n
		v, n, err := docvalue.Decode(body[pos:])
		if err != nil {
			return nil, 0, qerrors.Corrupt(err, "", "S.stv", "truncated stored field value")
		}
		pos += n
		doc[string(name)] = v
	}
	return doc, total, nil
}

// StoredStore indexes a sequence of stored records by local doc ID, built
// by reading an S.stv file once at segment open and recording each
// record's byte offset so stored_fields(docid) is O(1) after that. The
// offset index is bit-packed at the minimum width the file size needs,
// which keeps the resident footprint near one byte per doc for small
// segments instead of eight.
type StoredStore struct {
	data    []byte
	offsets *packedints.Reader
	count   int
}

// LoadStoredStore scans buf (the whole S.stv contents) once, building the
// offset index. docCount is the segment's declared doc count.
func LoadStoredStore(buf []byte, docCount int) (*StoredStore, error) {
	bits := packedints.BitsRequired(int64(len(buf)) + 1)
	pw := packedints.NewWriter(bits)
	count := 0
	off := 0
	for off < len(buf) {
		pw.Add(int64(off))
		count++
		recLen, n := bytecodec.Uvarint(buf[off:])
		if n <= 0 {
			return nil, qerrors.Corrupt(nil, "", "S.stv", "truncated record while indexing")
		}
		off += n + int(recLen)
	}
	if count != docCount {
		return nil, qerrors.Corrupt(nil, "", "S.stv", "stored record count does not match doc count")
	}
	return &StoredStore{data: buf, offsets: packedints.NewReader(pw.Bytes(), bits), count: count}, nil
}

// Get returns the stored fields for local doc ID docID.
func (s *StoredStore) Get(docID uint32) (StoredDoc, error) {
	if int(docID) >= s.count {
		return nil, qerrors.NotFound("document")
	}
	doc, _, err := DecodeStored(s.data[s.offsets.Get(int(docID)):])
	return doc, err
}
