package matcher

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"
)

// stub is an in-memory matcher over explicit (doc, score, positions)
// rows, standing in for a decoded posting list.
type stubPosting struct {
	doc       uint32
	score     float64
	positions []uint32
}

type stub struct {
	rows    []stubPosting
	idx     int
	quality float64 // block bound; 0 disables quality support
}

func newStub(rows ...stubPosting) *stub {
	q := 0.0
	for _, r := range rows {
		if r.score > q {
			q = r.score
		}
	}
	return &stub{rows: rows, quality: q}
}

func docs(ids ...uint32) []stubPosting {
	rows := make([]stubPosting, len(ids))
	for i, id := range ids {
		rows[i] = stubPosting{doc: id, score: 1}
	}
	return rows
}

func (s *stub) IsActive() bool { return s.idx < len(s.rows) }
func (s *stub) ID() uint32 {
	if !s.IsActive() {
		return NoMoreDocs
	}
	return s.rows[s.idx].doc
}
func (s *stub) Next() error {
	if s.IsActive() {
		s.idx++
	}
	return nil
}
func (s *stub) SkipTo(target uint32) error {
	for s.IsActive() && s.ID() < target {
		s.idx++
	}
	return nil
}
func (s *stub) Weight() float64 { return 1 }
func (s *stub) Score() float64 {
	if !s.IsActive() {
		return 0
	}
	return s.rows[s.idx].score
}
func (s *stub) SupportsQuality() bool { return s.quality > 0 }
func (s *stub) BlockQuality() float64 { return s.quality }
func (s *stub) SkipToQuality(min float64) error {
	if s.quality > 0 && s.quality <= min {
		s.idx = len(s.rows)
	}
	return nil
}
func (s *stub) Positions() []uint32 {
	if !s.IsActive() {
		return nil
	}
	return s.rows[s.idx].positions
}
func (s *stub) Copy() Matcher {
	cp := *s
	cp.rows = append([]stubPosting(nil), s.rows...)
	return &cp
}

func collectIDs(t *testing.T, m Matcher) []uint32 {
	t.Helper()
	var out []uint32
	for m.IsActive() {
		out = append(out, m.ID())
		require.NoError(t, m.Next())
	}
	return out
}

func TestConjunctionIntersects(t *testing.T) {
	c := NewConjunction([]Matcher{
		newStub(docs(1, 3, 5, 7, 9)...),
		newStub(docs(3, 4, 5, 9, 11)...),
		newStub(docs(0, 3, 9)...),
	})
	require.Equal(t, []uint32{3, 9}, collectIDs(t, c))
}

func TestConjunctionEmptyChild(t *testing.T) {
	c := NewConjunction([]Matcher{newStub(docs(1, 2)...), newStub()})
	require.False(t, c.IsActive())
}

func TestDisjunctionUnionsAndSums(t *testing.T) {
	d := NewDisjunction([]Matcher{
		newStub(stubPosting{doc: 1, score: 2}, stubPosting{doc: 5, score: 2}),
		newStub(stubPosting{doc: 1, score: 3}, stubPosting{doc: 3, score: 3}),
	})
	require.Equal(t, uint32(1), d.ID())
	require.Equal(t, 5.0, d.Score()) // both children on doc 1
	require.NoError(t, d.Next())
	require.Equal(t, uint32(3), d.ID())
	require.Equal(t, 3.0, d.Score())
	require.NoError(t, d.Next())
	require.Equal(t, uint32(5), d.ID())
	require.NoError(t, d.Next())
	require.False(t, d.IsActive())
}

func TestDisjunctionSkipTo(t *testing.T) {
	d := NewDisjunction([]Matcher{
		newStub(docs(1, 4, 8)...),
		newStub(docs(2, 6, 10)...),
	})
	require.NoError(t, d.SkipTo(5))
	require.Equal(t, uint32(6), d.ID())
	require.NoError(t, d.SkipTo(11))
	require.False(t, d.IsActive())
}

func TestDisjunctionQualityPruning(t *testing.T) {
	weak := newStub(stubPosting{doc: 2, score: 0.1}, stubPosting{doc: 4, score: 0.1})
	strong := newStub(stubPosting{doc: 10, score: 5})
	d := NewDisjunction([]Matcher{weak, strong})
	require.True(t, d.SupportsQuality())
	require.InDelta(t, 5.1, d.BlockQuality(), 1e-9)

	// Below the union's bound nothing can be dismissed.
	require.NoError(t, d.SkipToQuality(4))
	require.True(t, d.IsActive())
	require.Equal(t, uint32(2), d.ID())

	// Above it, every child's blocks are provably non-contributing.
	require.NoError(t, d.SkipToQuality(6))
	require.False(t, d.IsActive())
}

func TestNegation(t *testing.T) {
	n := NewNegation(
		newStub(docs(0, 1, 2, 3, 4)...),
		newStub(docs(1, 3)...),
	)
	require.Equal(t, []uint32{0, 2, 4}, collectIDs(t, n))
}

func TestNegationExcludesEverything(t *testing.T) {
	n := NewNegation(newStub(docs(1, 2)...), newStub(docs(1, 2)...))
	require.False(t, n.IsActive())
}

func TestPhraseExactAdjacency(t *testing.T) {
	// doc 0: "the quick brown fox", doc 1: "brown fox quick",
	// doc 2: "the quick fox" — only doc 2 has "quick fox" adjacent.
	quick := newStub(
		stubPosting{doc: 0, score: 1, positions: []uint32{1}},
		stubPosting{doc: 1, score: 1, positions: []uint32{2}},
		stubPosting{doc: 2, score: 1, positions: []uint32{1}},
	)
	fox := newStub(
		stubPosting{doc: 0, score: 1, positions: []uint32{3}},
		stubPosting{doc: 1, score: 1, positions: []uint32{1}},
		stubPosting{doc: 2, score: 1, positions: []uint32{2}},
	)
	p := NewPhrase([]Positioned{quick, fox}, 0)
	require.Equal(t, []uint32{2}, collectIDs(t, p))
}

func TestPhraseSlop(t *testing.T) {
	// "quick ... fox" with one word between only matches at slop >= 1.
	quick := newStub(stubPosting{doc: 0, score: 1, positions: []uint32{0}})
	fox := newStub(stubPosting{doc: 0, score: 1, positions: []uint32{2}})
	require.False(t, NewPhrase([]Positioned{quick.Copy().(Positioned), fox.Copy().(Positioned)}, 0).IsActive())
	require.True(t, NewPhrase([]Positioned{quick, fox}, 1).IsActive())
}

func TestAllSkipsDeleted(t *testing.T) {
	a := NewAll(4, roaring.BitmapOf(1, 2), 1)
	require.Equal(t, []uint32{0, 3}, collectIDs(t, a))
}

func TestBoostScalesScoreAndQuality(t *testing.T) {
	b := NewBoost(newStub(stubPosting{doc: 1, score: 2}), 3)
	require.Equal(t, 6.0, b.Score())
	require.Equal(t, 6.0, b.BlockQuality())
}

func TestConstScore(t *testing.T) {
	c := NewConstScore(newStub(stubPosting{doc: 1, score: 2}), 0.5)
	require.Equal(t, 0.5, c.Score())
	require.False(t, c.SupportsQuality())
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, term string
		want          bool
	}{
		{"qu*k", "quick", true},
		{"qu*k", "quack", true},
		{"qu*k", "quicker", false},
		{"q?ick", "quick", true},
		{"q?ick", "qick", false},
		{"*", "anything", true},
		{"my*life", "my so called life", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, wildcardMatch([]byte(c.pattern), []byte(c.term)), "pattern %q term %q", c.pattern, c.term)
	}
}

func TestPrefixSuccessor(t *testing.T) {
	require.Equal(t, []byte("qv"), prefixSuccessor([]byte("qu")))
	require.Equal(t, []byte{0x62}, prefixSuccessor([]byte{0x61, 0xff}))
	require.Nil(t, prefixSuccessor(nil))
	require.Nil(t, prefixSuccessor([]byte{0xff, 0xff}))
}
