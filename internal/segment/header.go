package segment

import "github.com/quillsearch/quill/internal/bytecodec"

// Header is the small fixed metadata every segment file set begins with:
// identity, generation, doc count, and schema fingerprint.
type Header struct {
	ID             string
	Generation     uint64
	DocCount       int
	SchemaFP       uint64
	DeletedVersion uint64 // bumped each time S.del is rewritten
}

func EncodeHeader(dst []byte, h Header) []byte {
	dst = bytecodec.PutBytes(dst, []byte(h.ID))
	dst = bytecodec.PutUvarint(dst, h.Generation)
	dst = bytecodec.PutUvarint(dst, uint64(h.DocCount))
	dst = bytecodec.PutFixedUint64(dst, h.SchemaFP)
	dst = bytecodec.PutUvarint(dst, h.DeletedVersion)
	return dst
}

func DecodeHeader(buf []byte) (Header, int, error) {
	id, n, err := bytecodec.ReadBytes(buf)
	if err != nil {
		return Header{}, 0, err
	}
	off := n
	gen, n := bytecodec.Uvarint(buf[off:])
	off += n
	docCount, n := bytecodec.Uvarint(buf[off:])
	off += n
	fp := bytecodec.FixedUint64(buf[off:])
	off += 8
	delVersion, n := bytecodec.Uvarint(buf[off:])
	off += n
	return Header{
		ID:             string(id),
		Generation:     gen,
		DocCount:       int(docCount),
		SchemaFP:       fp,
		DeletedVersion: delVersion,
	}, off, nil
}
