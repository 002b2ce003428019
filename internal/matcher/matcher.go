// Package matcher implements the matcher algebra: a family of posting
// iterators (term, conjunction, disjunction, negation, phrase, and
// dictionary-expanded wildcard/prefix/range) exposing skip-to and
// block-quality operations so a collector (internal/collector) can prune
// work that cannot enter the top-K.
package matcher

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/quillsearch/quill/internal/scoring"
	"github.com/quillsearch/quill/internal/segment"
)

// NoMoreDocs is returned by ID() once a matcher has become inactive.
const NoMoreDocs = ^uint32(0)

// Matcher is the contract every posting iterator in the algebra
// implements.
type Matcher interface {
	// IsActive reports whether the matcher is positioned on a valid
	// posting.
	IsActive() bool
	// ID returns the current document ID. Monotonically non-decreasing
	// across calls.
	ID() uint32
	// Next advances to the next posting, or becomes inactive.
	Next() error
	// SkipTo advances until ID() >= target or the matcher becomes
	// inactive.
	SkipTo(target uint32) error
	// Weight is the score-independent weight of the current posting
	// (commonly tf).
	Weight() float64
	// Score is the scorer-produced score of the current posting.
	Score() float64
	// SupportsQuality reports whether BlockQuality/SkipToQuality are
	// meaningful for this matcher.
	SupportsQuality() bool
	// BlockQuality is an upper bound on the score any posting in the
	// matcher's current block could produce.
	BlockQuality() float64
	// SkipToQuality advances past entire blocks whose upper bound is <=
	// min, without necessarily landing on a live posting.
	SkipToQuality(min float64) error
	// Copy returns an independent, identically-positioned clone, used by
	// Phrase for position-sequence backtracking.
	Copy() Matcher
}

// TermMatcher iterates one term's posting list, decoding blocks lazily
// from the segment reader and skipping deleted documents transparently.
type TermMatcher struct {
	reader  *segment.Reader
	field   string
	ti      segment.TermInfo
	scorer  scoring.Scorer
	deleted *roaring.Bitmap

	blockIdx    int
	postings    []segment.Posting
	postIdx     int
	prevLastDoc uint32
	curHdr      segment.BlockHeader
	inline      bool
	active      bool
}

// NewTermMatcher constructs a matcher over field's postings for term,
// returning ok=false if the term does not occur in reader. deleted may be
// nil (no tombstones recorded for this segment).
func NewTermMatcher(reader *segment.Reader, field string, term []byte, scorer scoring.Scorer, deleted *roaring.Bitmap) (*TermMatcher, bool) {
	ti, ok := reader.TermInfo(field, term)
	if !ok {
		return nil, false
	}
	m := &TermMatcher{reader: reader, field: field, ti: ti, scorer: scorer, deleted: deleted}
	m.init()
	return m, true
}

// NewTermMatcherFromInfo skips the dictionary lookup when the caller
// already holds the TermInfo, as dictionary-expansion queries do.
func NewTermMatcherFromInfo(reader *segment.Reader, field string, ti segment.TermInfo, scorer scoring.Scorer, deleted *roaring.Bitmap) *TermMatcher {
	m := &TermMatcher{reader: reader, field: field, ti: ti, scorer: scorer, deleted: deleted}
	m.init()
	return m
}

func (m *TermMatcher) init() {
	if m.ti.InlinePosting != nil {
		m.inline = true
		m.postings = []segment.Posting{*m.ti.InlinePosting}
		m.postIdx = 0
		m.active = true
		m.skipDeletedForward()
		return
	}
	m.blockIdx = -1
	m.loadNextBlock()
}

func (m *TermMatcher) isDeleted(docID uint32) bool {
	return m.deleted != nil && m.deleted.Contains(docID)
}

// loadNextBlock decodes the next posting block (if any), positioning at
// its first entry.
func (m *TermMatcher) loadNextBlock() {
	m.blockIdx++
	if m.blockIdx >= len(m.ti.Blocks) {
		m.active = false
		m.postings = nil
		return
	}
	bp := m.ti.Blocks[m.blockIdx]
	postings, hdr, err := m.reader.DecodeBlockAt(m.field, bp, m.prevLastDoc)
	if err != nil {
		m.active = false
		return
	}
	m.postings = postings
	m.curHdr = hdr
	m.prevLastDoc = bp.LastDoc
	m.postIdx = 0
	m.active = true
	m.skipDeletedForward()
}

// skipDeletedForward advances postIdx past deleted docs within the
// current block/inline list, loading subsequent blocks as needed.
func (m *TermMatcher) skipDeletedForward() {
	for m.active {
		if m.inline {
			if m.postIdx >= len(m.postings) {
				m.active = false
				return
			}
			if !m.isDeleted(m.postings[m.postIdx].DocID) {
				return
			}
			m.postIdx++
			continue
		}
		if m.postIdx >= len(m.postings) {
			m.loadNextBlock()
			continue
		}
		if !m.isDeleted(m.postings[m.postIdx].DocID) {
			return
		}
		m.postIdx++
	}
}

func (m *TermMatcher) IsActive() bool { return m.active }

func (m *TermMatcher) ID() uint32 {
	if !m.active {
		return NoMoreDocs
	}
	return m.postings[m.postIdx].DocID
}

func (m *TermMatcher) Next() error {
	if !m.active {
		return nil
	}
	m.postIdx++
	m.skipDeletedForward()
	return nil
}

func (m *TermMatcher) SkipTo(target uint32) error {
	for m.active && m.ID() < target {
		if m.inline {
			m.postIdx++
			m.skipDeletedForward()
			continue
		}
		// Skip whole blocks whose MaxDocID is still below target.
		if m.postIdx == 0 && m.curHdr.MaxDocID < target {
			m.loadNextBlock()
			continue
		}
		m.postIdx++
		m.skipDeletedForward()
	}
	return nil
}

func (m *TermMatcher) current() segment.Posting {
	return m.postings[m.postIdx]
}

func (m *TermMatcher) Weight() float64 {
	if !m.active {
		return 0
	}
	return float64(m.current().TF)
}

func (m *TermMatcher) Score() float64 {
	if !m.active || m.scorer == nil {
		return 0
	}
	p := m.current()
	length := m.reader.DocFieldLength(p.DocID, m.field, 1)
	return m.scorer.Score(p.TF, length)
}

func (m *TermMatcher) Positions() []uint32 {
	if !m.active {
		return nil
	}
	return m.current().Positions
}

func (m *TermMatcher) SupportsQuality() bool {
	return m.scorer != nil && !m.scorer.UsesFinal()
}

func (m *TermMatcher) BlockQuality() float64 {
	if !m.SupportsQuality() || !m.active {
		return 0
	}
	if m.inline {
		p := m.current()
		length := m.reader.DocFieldLength(p.DocID, m.field, 1)
		return m.scorer.Score(p.TF, length)
	}
	return m.scorer.MaxQuality(m.curHdr)
}

func (m *TermMatcher) SkipToQuality(min float64) error {
	if m.inline || !m.SupportsQuality() {
		return nil
	}
	for m.active && m.scorer.MaxQuality(m.curHdr) <= min {
		m.loadNextBlock()
	}
	return nil
}

func (m *TermMatcher) Copy() Matcher {
	cp := *m
	cp.postings = append([]segment.Posting(nil), m.postings...)
	return &cp
}
