package segment

import "github.com/quillsearch/quill/internal/lengthnorm"

// FieldLengths is the dense per-document length array for one scorable
// field: one lengthnorm-encoded byte per doc, absent
// entries (a doc that never saw the field) decode to a caller-supplied
// default via DocLength.
type FieldLengths struct {
	bytes   []byte
	present []bool // nil means every doc in range has a recorded length
}

// NewFieldLengthsBuilder creates a builder over docCount documents, all
// initially absent.
func NewFieldLengthsBuilder(docCount int) *FieldLengthsBuilder {
	return &FieldLengthsBuilder{bytes: make([]byte, docCount), present: make([]bool, docCount)}
}

type FieldLengthsBuilder struct {
	bytes   []byte
	present []bool
}

func (b *FieldLengthsBuilder) Set(docID uint32, length uint32) {
	b.bytes[docID] = lengthnorm.Encode(length)
	b.present[docID] = true
}

func (b *FieldLengthsBuilder) Build() *FieldLengths {
	allPresent := true
	for _, p := range b.present {
		if !p {
			allPresent = false
			break
		}
	}
	if allPresent {
		return &FieldLengths{bytes: b.bytes}
	}
	return &FieldLengths{bytes: b.bytes, present: b.present}
}

// RawByte returns the lengthnorm-encoded byte for a doc, used by the block
// codec to populate BlockHeader.MaxFieldLength while writing postings.
func (fl *FieldLengths) RawByte(docID uint32) byte {
	if fl == nil || int(docID) >= len(fl.bytes) {
		return 0
	}
	return fl.bytes[docID]
}

// At decodes the length for docID, or def if missing.
func (fl *FieldLengths) At(docID uint32, def uint32) uint32 {
	if fl == nil || int(docID) >= len(fl.bytes) {
		return def
	}
	present := fl.present == nil || fl.present[docID]
	return lengthnorm.DecodeOrDefault(present, fl.bytes[docID], def)
}

// Average returns the mean decoded length across present documents, used
// by BM25F as the avgdl collection statistic.
func (fl *FieldLengths) Average() float64 {
	if fl == nil || len(fl.bytes) == 0 {
		return 0
	}
	var sum float64
	var n int
	for i := range fl.bytes {
		if fl.present != nil && !fl.present[i] {
			continue
		}
		sum += float64(lengthnorm.Decode(fl.bytes[i]))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Bytes returns the raw encoded array, for persisting as S.fln.
func (fl *FieldLengths) Bytes() []byte { return fl.bytes }

// LoadFieldLengths wraps an already-decoded byte array (read verbatim
// from an S.fln section) as a FieldLengths with no absent entries; missing
// (field, doc) pairs across the whole segment are represented by omitting
// the field's section entirely, handled one level up by Reader.
func LoadFieldLengths(bytes []byte) *FieldLengths {
	return &FieldLengths{bytes: bytes}
}
