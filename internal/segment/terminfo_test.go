package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTermInfoRoundTripBlocks(t *testing.T) {
	ti := TermInfo{
		DF:         3,
		CF:         5,
		MaxQuality: 12.5,
		Blocks: []BlockPointer{
			{Offset: 0, Length: 64, LastDoc: 9, Header: BlockHeader{Count: 10, MaxTF: 4, MaxFieldLength: 3}},
			{Offset: 64, Length: 72, LastDoc: 25, Header: BlockHeader{Count: 16, MaxTF: 2, MaxFieldLength: 5}},
		},
	}
	buf := EncodeTermInfo(nil, ti, false)
	got, n := DecodeTermInfo(buf, false)
	require.Equal(t, len(buf), n)
	require.Equal(t, ti.DF, got.DF)
	require.Equal(t, ti.CF, got.CF)
	require.InDelta(t, ti.MaxQuality, got.MaxQuality, 1e-9)
	require.Len(t, got.Blocks, 2)
	require.Equal(t, ti.Blocks[0].Offset, got.Blocks[0].Offset)
	require.Equal(t, ti.Blocks[1].Offset, got.Blocks[1].Offset)
	require.Equal(t, ti.Blocks[1].LastDoc, got.Blocks[1].LastDoc)
}

func TestTermInfoRoundTripInlinePosting(t *testing.T) {
	ti := TermInfo{
		DF:            1,
		CF:            1,
		InlinePosting: &Posting{DocID: 42, TF: 1, Positions: []uint32{3, 8, 20}},
	}
	buf := EncodeTermInfo(nil, ti, true)
	got, n := DecodeTermInfo(buf, true)
	require.Equal(t, len(buf), n)
	require.NotNil(t, got.InlinePosting)
	require.Equal(t, ti.InlinePosting.DocID, got.InlinePosting.DocID)
	require.Equal(t, ti.InlinePosting.Positions, got.InlinePosting.Positions)
}
