package collector

import (
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/matcher"
	"github.com/quillsearch/quill/internal/qerrors"
)

// scored is a minimal matcher over (doc, score) rows, optionally
// grouped into fixed-size "blocks" whose quality is the block's max
// score, so pruning can be observed without a real segment.
type scored struct {
	ids       []uint32
	scores    []float64
	idx       int
	blockSize int // 0 disables quality support
}

func (s *scored) IsActive() bool { return s.idx < len(s.ids) }
func (s *scored) ID() uint32 {
	if !s.IsActive() {
		return matcher.NoMoreDocs
	}
	return s.ids[s.idx]
}
func (s *scored) Next() error {
	if s.IsActive() {
		s.idx++
	}
	return nil
}
func (s *scored) SkipTo(target uint32) error {
	for s.IsActive() && s.ID() < target {
		s.idx++
	}
	return nil
}
func (s *scored) Weight() float64 { return 1 }
func (s *scored) Score() float64 {
	if !s.IsActive() {
		return 0
	}
	return s.scores[s.idx]
}
func (s *scored) SupportsQuality() bool { return s.blockSize > 0 }
func (s *scored) BlockQuality() float64 {
	if !s.IsActive() {
		return 0
	}
	start := s.idx - s.idx%s.blockSize
	end := start + s.blockSize
	if end > len(s.ids) {
		end = len(s.ids)
	}
	q := 0.0
	for _, sc := range s.scores[start:end] {
		if sc > q {
			q = sc
		}
	}
	return q
}
func (s *scored) SkipToQuality(min float64) error {
	for s.IsActive() && s.BlockQuality() <= min {
		start := s.idx - s.idx%s.blockSize
		s.idx = start + s.blockSize
	}
	return nil
}
func (s *scored) Copy() matcher.Matcher {
	cp := *s
	return &cp
}

func TestTopNOrdersBestFirst(t *testing.T) {
	c := NewTopN(3)
	m := &scored{ids: []uint32{0, 1, 2, 3, 4}, scores: []float64{1, 5, 3, 4, 2}}
	require.NoError(t, c.Collect(0, 0, m))
	hits := c.Results()
	require.Len(t, hits, 3)
	require.Equal(t, []uint32{1, 3, 2}, []uint32{hits[0].DocID, hits[1].DocID, hits[2].DocID})
	require.Equal(t, 5.0, hits[0].Score)
}

func TestTopNTieBreaksTowardEarlierDocs(t *testing.T) {
	c := NewTopN(2)
	m := &scored{ids: []uint32{0, 1, 2}, scores: []float64{1, 1, 1}}
	require.NoError(t, c.Collect(0, 0, m))
	hits := c.Results()
	require.Len(t, hits, 2)
	require.Equal(t, uint32(0), hits[0].DocID)
	require.Equal(t, uint32(1), hits[1].DocID)
}

func TestTopNFilterAndMask(t *testing.T) {
	filter := roaring.BitmapOf(1, 2, 3)
	mask := roaring.BitmapOf(2)
	c := NewTopN(10, WithFilter(filter), WithMask(mask))
	m := &scored{ids: []uint32{0, 1, 2, 3, 4}, scores: []float64{1, 1, 1, 1, 1}}
	require.NoError(t, c.Collect(0, 0, m))
	hits := c.Results()
	require.Len(t, hits, 2)
	require.Equal(t, uint32(1), hits[0].DocID)
	require.Equal(t, uint32(3), hits[1].DocID)
}

func TestTopNGlobalOffsets(t *testing.T) {
	c := NewTopN(4)
	require.NoError(t, c.Collect(0, 0, &scored{ids: []uint32{0, 1}, scores: []float64{1, 2}}))
	require.NoError(t, c.Collect(1, 2, &scored{ids: []uint32{0}, scores: []float64{3}}))
	hits := c.Results()
	require.Len(t, hits, 3)
	require.Equal(t, Hit{Segment: 1, DocID: 0, Global: 2, Score: 3}, hits[0])
}

func TestTopNTimeLimit(t *testing.T) {
	c := NewTopN(10, WithTimeLimit(time.Now().Add(-time.Second), 1))
	ids := make([]uint32, 100)
	scores := make([]float64, 100)
	for i := range ids {
		ids[i] = uint32(i)
		scores[i] = 1
	}
	err := c.Collect(0, 0, &scored{ids: ids, scores: scores})
	require.Error(t, err)
	require.True(t, qerrors.IsTimeLimit(err))
	// The partial heap remains usable.
	require.NotEmpty(t, c.Results())
}

// Pruning must never change the top-K relative to an exhaustive scan.
func TestTopNPruningEquivalence(t *testing.T) {
	ids := make([]uint32, 256)
	scores := make([]float64, 256)
	for i := range ids {
		ids[i] = uint32(i)
		// A deterministic spread with distinct values so ordering is
		// unambiguous.
		scores[i] = float64((i*131)%251) / 10
	}

	exhaustive := NewTopN(10)
	require.NoError(t, exhaustive.Collect(0, 0, &scored{ids: ids, scores: scores}))
	pruned := NewTopN(10)
	require.NoError(t, pruned.Collect(0, 0, &scored{ids: ids, scores: scores, blockSize: 16}))

	require.Equal(t, exhaustive.Results(), pruned.Results())
}
