package segment

import "github.com/quillsearch/quill/internal/bytecodec"

// BlockPointer locates one posting block within the S.pst file.
type BlockPointer struct {
	Offset  int64
	Length  int32
	LastDoc uint32 // MaxDocID of this block, i.e. prevLastDoc for the next
	Header  BlockHeader
}

// TermInfo is the term dictionary's entry for one term:
// document frequency, collection frequency, the block pointer list, and
// the maximum per-block quality upper bound. A term with exactly one
// posting is inlined (InlinePosting != nil) to save a block round-trip.
type TermInfo struct {
	DF            uint64
	CF            uint64
	Blocks        []BlockPointer
	MaxQuality    float64
	InlinePosting *Posting // non-nil iff DF == 1 and the posting is inlined
}

// EncodeTermInfo appends TermInfo's on-disk form, used by both dictionary
// implementations (dict_sorted's block file and dict_fst's side value
// table) to keep the encoding identical regardless of which structure
// indexes it.
func EncodeTermInfo(dst []byte, ti TermInfo, withPositions bool) []byte {
	dst = bytecodec.PutUvarint(dst, ti.DF)
	dst = bytecodec.PutUvarint(dst, ti.CF)
	dst = bytecodec.PutFloat64(dst, ti.MaxQuality)
	if ti.InlinePosting != nil {
		dst = append(dst, 1)
		dst = bytecodec.PutUvarint(dst, uint64(ti.InlinePosting.DocID))
		dst = bytecodec.PutUvarint(dst, uint64(ti.InlinePosting.TF))
		if withPositions {
			dst = bytecodec.PutUvarint(dst, uint64(len(ti.InlinePosting.Positions)))
			var prev uint32
			for _, p := range ti.InlinePosting.Positions {
				dst = bytecodec.PutUvarint(dst, uint64(p-prev))
				prev = p
			}
		}
		return dst
	}
	dst = append(dst, 0)
	dst = bytecodec.PutUvarint(dst, uint64(len(ti.Blocks)))
	var prevOffset int64
	var prevLast uint32
	for _, bp := range ti.Blocks {
		dst = bytecodec.PutVarint(dst, bp.Offset-prevOffset)
		dst = bytecodec.PutUvarint(dst, uint64(bp.Length))
		dst = bytecodec.PutUvarint(dst, uint64(bp.LastDoc-prevLast))
		dst = bytecodec.PutUvarint(dst, uint64(bp.Header.Count))
		dst = bytecodec.PutUvarint(dst, uint64(bp.Header.MaxTF))
		dst = append(dst, bp.Header.MaxFieldLength)
		prevOffset = bp.Offset
		prevLast = bp.LastDoc
	}
	return dst
}

// DecodeTermInfo is the inverse of EncodeTermInfo, returning the value and
// the number of bytes consumed.
func DecodeTermInfo(buf []byte, withPositions bool) (TermInfo, int) {
	off := 0
	df, n := bytecodec.Uvarint(buf[off:])
	off += n
	cf, n := bytecodec.Uvarint(buf[off:])
	off += n
	q, _ := bytecodec.Float64(buf[off:])
	off += 8

	ti := TermInfo{DF: df, CF: cf, MaxQuality: q}

	inline := buf[off]
	off++
	if inline == 1 {
		doc, n := bytecodec.Uvarint(buf[off:])
		off += n
		tf, n := bytecodec.Uvarint(buf[off:])
		off += n
		p := &Posting{DocID: uint32(doc), TF: uint32(tf)}
		if withPositions {
			pc, n := bytecodec.Uvarint(buf[off:])
			off += n
			positions := make([]uint32, pc)
			var prev uint32
			for i := uint64(0); i < pc; i++ {
				d, n := bytecodec.Uvarint(buf[off:])
				off += n
				prev += uint32(d)
				positions[i] = prev
			}
			p.Positions = positions
		}
		ti.InlinePosting = p
		return ti, off
	}

	count, n := bytecodec.Uvarint(buf[off:])
	off += n
	blocks := make([]BlockPointer, count)
	var prevOffset int64
	var prevLast uint32
	for i := uint64(0); i < count; i++ {
		dOff, n := bytecodec.Varint(buf[off:])
		off += n
		length, n := bytecodec.Uvarint(buf[off:])
		off += n
		dLast, n := bytecodec.Uvarint(buf[off:])
		off += n
		cnt, n := bytecodec.Uvarint(buf[off:])
		off += n
		maxTF, n := bytecodec.Uvarint(buf[off:])
		off += n
		maxLen := buf[off]
		off++

		bp := BlockPointer{
			Offset:  prevOffset + dOff,
			Length:  int32(length),
			LastDoc: prevLast + uint32(dLast),
			Header: BlockHeader{
				Count:          int(cnt),
				MaxDocID:       prevLast + uint32(dLast),
				MaxTF:          uint32(maxTF),
				MaxFieldLength: maxLen,
			},
		}
		blocks[i] = bp
		prevOffset = bp.Offset
		prevLast = bp.LastDoc
	}
	ti.Blocks = blocks
	return ti, off
}
