// Package segment implements the on-disk segment format: posting
// blocks, the term dictionary (two implementations), the per-document
// store, and a snapshot-consistent segment Reader.
package segment

import (
	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/lengthnorm"
)

// MaxBlockSize is the maximum number of postings packed into one block.
const MaxBlockSize = 128

// BlockHeader carries the sufficient statistics a scorer needs to compute
// a block-quality upper bound without decoding the block body.
type BlockHeader struct {
	BaseDocID      uint32 // first doc ID in this block
	Count          int    // number of postings in this block
	MaxDocID       uint32
	MaxTF          uint32
	MaxFieldLength byte // lengthnorm-encoded, largest length seen in-block
}

// Posting is one decoded (term, doc) occurrence record, positions already
// delta-decoded to absolute within-document offsets.
type Posting struct {
	DocID     uint32
	TF        uint32
	Positions []uint32 // empty when the field does not carry positions
}

// FieldLengthAt resolves the lengthnorm-encoded length of a field for a
// document at block-encode time, used to populate BlockHeader.MaxFieldLength.
type FieldLengthAt func(docID uint32) byte

// EncodeBlock writes one block (up to MaxBlockSize postings) of a posting
// list sorted by ascending DocID. prevLastDoc is the MaxDocID of the
// preceding block (0 for the first block in the list) so BaseDocID can be
// delta-coded against it. withPositions controls whether
// per-posting position streams are written (set per the field's schema
// capability, not per posting).
func EncodeBlock(dst []byte, postings []Posting, prevLastDoc uint32, withPositions bool, lengths FieldLengthAt) ([]byte, BlockHeader) {
	if len(postings) > MaxBlockSize {
		postings = postings[:MaxBlockSize]
	}
	hdr := BlockHeader{
		BaseDocID: postings[0].DocID,
		Count:     len(postings),
	}

	dst = bytecodec.PutUvarint(dst, uint64(hdr.Count))
	dst = bytecodec.PutUvarint(dst, uint64(hdr.BaseDocID-prevLastDoc))

	prev := hdr.BaseDocID
	for i, p := range postings {
		if i == 0 {
			dst = bytecodec.PutUvarint(dst, 0)
		} else {
			dst = bytecodec.PutUvarint(dst, uint64(p.DocID-prev))
		}
		prev = p.DocID
		if p.DocID > hdr.MaxDocID {
			hdr.MaxDocID = p.DocID
		}
		if p.TF > hdr.MaxTF {
			hdr.MaxTF = p.TF
		}
		if lengths != nil {
			if l := lengths(p.DocID); l > hdr.MaxFieldLength {
				hdr.MaxFieldLength = l
			}
		}
	}

	for _, p := range postings {
		dst = bytecodec.PutUvarint(dst, uint64(p.TF))
	}

	if withPositions {
		for _, p := range postings {
			dst = bytecodec.PutUvarint(dst, uint64(len(p.Positions)))
			var prevPos uint32
			for _, pos := range p.Positions {
				dst = bytecodec.PutUvarint(dst, uint64(pos-prevPos))
				prevPos = pos
			}
		}
	}

	return dst, hdr
}

// DecodeBlock decodes one self-sufficient block starting at the head of
// buf, returning the postings, the BlockHeader, and the number of bytes
// consumed. prevLastDoc must match the value EncodeBlock was given for
// this block (random access via the dictionary's pointer list always
// knows the preceding block's MaxDocID from its own cached header).
func DecodeBlock(buf []byte, prevLastDoc uint32, withPositions bool) ([]Posting, BlockHeader, int) {
	off := 0
	count64, n := bytecodec.Uvarint(buf[off:])
	off += n
	count := int(count64)

	baseDelta, n := bytecodec.Uvarint(buf[off:])
	off += n
	hdr := BlockHeader{BaseDocID: prevLastDoc + uint32(baseDelta), Count: count}

	postings := make([]Posting, count)
	cur := hdr.BaseDocID
	for i := 0; i < count; i++ {
		delta, n := bytecodec.Uvarint(buf[off:])
		off += n
		if i > 0 {
			cur += uint32(delta)
		}
		postings[i].DocID = cur
		if cur > hdr.MaxDocID {
			hdr.MaxDocID = cur
		}
	}

	for i := 0; i < count; i++ {
		tf, n := bytecodec.Uvarint(buf[off:])
		off += n
		postings[i].TF = uint32(tf)
		if postings[i].TF > hdr.MaxTF {
			hdr.MaxTF = postings[i].TF
		}
	}

	if withPositions {
		for i := 0; i < count; i++ {
			pc, n := bytecodec.Uvarint(buf[off:])
			off += n
			positions := make([]uint32, pc)
			var prevPos uint32
			for j := uint64(0); j < pc; j++ {
				delta, n := bytecodec.Uvarint(buf[off:])
				off += n
				prevPos += uint32(delta)
				positions[j] = prevPos
			}
			postings[i].Positions = positions
		}
	}

	return postings, hdr, off
}

// MinFieldLength derives the block's minimum field length (used by the
// scorer for block-quality bounds) from the maximum recorded length,
// relying on the lengthnorm approximation being monotonic-decreasing in
// score: larger stored length never yields a higher score for fixed tf.
// The true minimum is unknowable without decoding every posting, so the
// bound conservatively uses the decoded value of the max-length byte
// itself as a monotone proxy.
func MinFieldLength(hdr BlockHeader) uint32 {
	return lengthnorm.Decode(hdr.MaxFieldLength)
}
