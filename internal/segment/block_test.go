package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockRoundTripNoPositions(t *testing.T) {
	postings := []Posting{
		{DocID: 5, TF: 1},
		{DocID: 9, TF: 3},
		{DocID: 20, TF: 2},
	}
	buf, hdr := EncodeBlock(nil, postings, 0, false, nil)
	require.Equal(t, uint32(5), hdr.BaseDocID)
	require.Equal(t, 3, hdr.Count)
	require.Equal(t, uint32(20), hdr.MaxDocID)
	require.Equal(t, uint32(3), hdr.MaxTF)

	got, decHdr, n := DecodeBlock(buf, 0, false)
	require.Equal(t, len(buf), n)
	require.Equal(t, hdr, decHdr)
	require.Equal(t, postings, got)
}

func TestBlockRoundTripWithPositions(t *testing.T) {
	postings := []Posting{
		{DocID: 1, TF: 2, Positions: []uint32{0, 4}},
		{DocID: 3, TF: 1, Positions: []uint32{7}},
	}
	buf, _ := EncodeBlock(nil, postings, 0, true, nil)
	got, _, n := DecodeBlock(buf, 0, true)
	require.Equal(t, len(buf), n)
	require.Equal(t, postings, got)
}

func TestBlockChainedPrevLastDoc(t *testing.T) {
	first := []Posting{{DocID: 10, TF: 1}, {DocID: 15, TF: 1}}
	second := []Posting{{DocID: 30, TF: 1}, {DocID: 40, TF: 1}}

	buf1, hdr1 := EncodeBlock(nil, first, 0, false, nil)
	_, hdr1dec, _ := DecodeBlock(buf1, 0, false)
	require.Equal(t, hdr1, hdr1dec)

	buf2, hdr2 := EncodeBlock(nil, second, hdr1.MaxDocID, false, nil)
	got2, hdr2dec, _ := DecodeBlock(buf2, hdr1.MaxDocID, false)
	require.Equal(t, hdr2, hdr2dec)
	require.Equal(t, second, got2)
}

func TestEncodeBlockTruncatesOversizedInput(t *testing.T) {
	postings := make([]Posting, MaxBlockSize+10)
	for i := range postings {
		postings[i] = Posting{DocID: uint32(i + 1), TF: 1}
	}
	_, hdr := EncodeBlock(nil, postings, 0, false, nil)
	require.Equal(t, MaxBlockSize, hdr.Count)
}

func TestMinFieldLengthMonotone(t *testing.T) {
	lengths := func(docID uint32) byte {
		return byte(docID)
	}
	postings := []Posting{{DocID: 1, TF: 1}, {DocID: 2, TF: 1}}
	_, hdr := EncodeBlock(nil, postings, 0, false, lengths)
	require.Greater(t, MinFieldLength(hdr), uint32(0))
}
