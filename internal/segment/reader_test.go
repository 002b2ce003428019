package segment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/schema"
)

// writeFakeSegment builds a minimal, valid one-field segment file set by
// hand, without the writer package, so Reader.Open can be exercised end
// to end on its own.
func writeFakeSegment(t *testing.T, dir directory.Directory, id string) (TermInfo, []Posting) {
	t.Helper()

	postings := []Posting{{DocID: 0, TF: 2}, {DocID: 2, TF: 1}}
	blockBuf, blockHdr := EncodeBlock(nil, postings, 0, false, nil)

	pstW, err := dir.CreateFile(id + ".pst")
	require.NoError(t, err)
	_, err = pstW.Write(blockBuf)
	require.NoError(t, err)
	require.NoError(t, pstW.Close())

	ti := TermInfo{
		DF:         2,
		CF:         3,
		MaxQuality: 4.2,
		Blocks: []BlockPointer{
			{Offset: 0, Length: int32(len(blockBuf)), LastDoc: blockHdr.MaxDocID, Header: blockHdr},
		},
	}
	hdr := Header{ID: id, Generation: 1, DocCount: 3, SchemaFP: 0x1}
	var trm []byte
	trm = EncodeHeader(trm, hdr)
	trm = bytecodec.PutUvarint(trm, 1)
	trm = bytecodec.PutBytes(trm, []byte("body"))
	trm, err = WriteDictSection(trm, false, [][]byte{[]byte("cat")}, []TermInfo{ti})
	require.NoError(t, err)

	trmW, err := dir.CreateFile(id + ".trm")
	require.NoError(t, err)
	_, err = trmW.Write(trm)
	require.NoError(t, err)
	require.NoError(t, trmW.Close())

	var stv []byte
	stv = EncodeStored(stv, StoredDoc{"body": docvalue.FromString("the cat sat")})
	stv = EncodeStored(stv, StoredDoc{"body": docvalue.FromString("a dog ran")})
	stv = EncodeStored(stv, StoredDoc{"body": docvalue.FromString("the cat ran")})
	stvW, err := dir.CreateFile(id + ".stv")
	require.NoError(t, err)
	_, err = stvW.Write(stv)
	require.NoError(t, err)
	require.NoError(t, stvW.Close())

	lb := NewFieldLengthsBuilder(3)
	lb.Set(0, 3)
	lb.Set(1, 3)
	lb.Set(2, 3)
	fl := lb.Build()
	var fln []byte
	fln = bytecodec.PutBytes(fln, []byte("body"))
	fln = append(fln, fl.Bytes()...)
	flnW, err := dir.CreateFile(id + ".fln")
	require.NoError(t, err)
	_, err = flnW.Write(fln)
	require.NoError(t, err)
	require.NoError(t, flnW.Close())

	return ti, postings
}

func TestReaderOpenAndLookup(t *testing.T) {
	dir := directory.NewMemDirectory()
	const id = "seg_0001"
	ti, postings := writeFakeSegment(t, dir, id)

	sch := schema.New().AddField(schema.FieldKind{Name: "body", Indexed: true, Stored: true, Scorable: true})

	r, err := Open(dir, id, sch)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.DocCountAll())
	require.Equal(t, 3, r.DocCount())
	require.False(t, r.HasDeletions())

	gotTI, ok := r.TermInfo("body", []byte("cat"))
	require.True(t, ok)
	require.Equal(t, ti.DF, gotTI.DF)
	require.Equal(t, ti.CF, gotTI.CF)

	_, ok = r.TermInfo("body", []byte("nope"))
	require.False(t, ok)

	gotPostings, _, err := r.DecodeBlockAt("body", gotTI.Blocks[0], 0)
	require.NoError(t, err)
	require.Equal(t, postings, gotPostings)

	doc0, err := r.StoredFields(0)
	require.NoError(t, err)
	require.Equal(t, "the cat sat", doc0["body"].Str)

	require.Equal(t, uint32(3), r.DocFieldLength(0, "body", 0))
	require.Greater(t, r.FieldLength("body"), 0.0)

	it, ok := r.Terms("body")
	require.True(t, ok)
	require.True(t, it.Active())
	require.Equal(t, []byte("cat"), it.Term())
	require.False(t, it.Next())
}

func TestReaderMissingFieldLookups(t *testing.T) {
	dir := directory.NewMemDirectory()
	const id = "seg_0002"
	writeFakeSegment(t, dir, id)

	sch := schema.New().AddField(schema.FieldKind{Name: "body", Indexed: true})
	r, err := Open(dir, id, sch)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.TermInfo("missing", []byte("cat"))
	require.False(t, ok)
	_, ok = r.Terms("missing")
	require.False(t, ok)
	require.Equal(t, uint32(0), r.DocFieldLength(0, "missing", 0))
	require.Equal(t, 0.0, r.FieldLength("missing"))
}
