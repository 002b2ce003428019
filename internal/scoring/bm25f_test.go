package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/segment"
)

func TestBM25FScoreIncreasesWithTF(t *testing.T) {
	s := NewBM25F(DefaultFieldParams(), 1000, 10, 5)
	low := s.Score(1, 5)
	high := s.Score(5, 5)
	require.Greater(t, high, low)
}

func TestBM25FScoreDecreasesWithLength(t *testing.T) {
	s := NewBM25F(DefaultFieldParams(), 1000, 10, 5)
	short := s.Score(2, 2)
	long := s.Score(2, 50)
	require.Greater(t, short, long)
}

func TestBM25FMaxQualityBoundsActualScore(t *testing.T) {
	s := NewBM25F(DefaultFieldParams(), 1000, 10, 5)
	hdr := segment.BlockHeader{MaxTF: 4, MaxFieldLength: 5}
	bound := s.MaxQuality(hdr)
	actual := s.Score(3, 6)
	require.GreaterOrEqual(t, bound, actual)
}

func TestBM25FRareTermScoresHigherThanCommon(t *testing.T) {
	rare := NewBM25F(DefaultFieldParams(), 1000, 2, 10)
	common := NewBM25F(DefaultFieldParams(), 1000, 500, 10)
	require.Greater(t, rare.Score(2, 10), common.Score(2, 10))
}
