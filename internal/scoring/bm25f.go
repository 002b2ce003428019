// Package scoring implements the pluggable scorer contract: a default
// BM25F over collection and per-document statistics, exposing the
// block-quality upper bound the matcher algebra needs for top-K pruning
// without the matchers themselves knowing how scores are computed.
package scoring

import (
	"math"

	"github.com/quillsearch/quill/internal/segment"
)

// Scorer is the contract every scoring model implements: score a
// (tf, fieldLength) pair for one term/field, and compute an upper bound
// on the score any posting in a block could produce, so matchers stay
// scorer-agnostic.
type Scorer interface {
	Score(tf uint32, fieldLength uint32) float64
	MaxQuality(hdr segment.BlockHeader) float64
	// UsesFinal reports whether Final may reorder results arbitrarily,
	// which disables block-quality pruning.
	UsesFinal() bool
}

// FinalScorer is optionally implemented by a Scorer that rescales scores
// after the fact (e.g. a machine-learned reranker). The searcher does not
// call Final, and implementing it does not by itself disable pruning;
// block-quality pruning is disabled only when Scorer.UsesFinal is true.
type FinalScorer interface {
	Final(docID uint32, score float64) float64
}

// FieldParams are the per-field BM25F tuning knobs.
type FieldParams struct {
	K1     float64
	B      float64
	Weight float64
}

// DefaultFieldParams are the conventional BM25 defaults.
func DefaultFieldParams() FieldParams {
	return FieldParams{K1: 1.2, B: 0.75, Weight: 1.0}
}

// BM25F scores one (field, term) pair using collection statistics cached
// at construction time: total live document count, this term's document
// frequency, and the field's average length. A query tree with several
// terms constructs one BM25F per leaf term.
type BM25F struct {
	params FieldParams
	idf    float64
	avgdl  float64
}

// NewBM25F caches idf = ln(1 + (N-df+0.5)/(df+0.5)) and the field's avgdl
// so Score/MaxQuality are cheap per-posting calls.
func NewBM25F(params FieldParams, totalDocs int, df uint64, avgFieldLength float64) *BM25F {
	n := float64(totalDocs)
	idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	if idf < 0 {
		idf = 0
	}
	if avgFieldLength <= 0 {
		avgFieldLength = 1
	}
	return &BM25F{params: params, idf: idf, avgdl: avgFieldLength}
}

func (s *BM25F) Score(tf uint32, fieldLength uint32) float64 {
	if tf == 0 {
		return 0
	}
	k1, b, w := s.params.K1, s.params.B, s.params.Weight
	norm := 1 - b + b*(float64(fieldLength)/s.avgdl)
	return w * s.idf * (float64(tf) * (k1 + 1)) / (float64(tf) + k1*norm)
}

// MaxQuality computes the block's score upper bound from its recorded
// MaxTF and (derived) minimum field length: smaller field
// length never yields a lower BM25F score for fixed tf, so the block's
// MaxFieldLength byte (the largest length encoded in-block) decodes to a
// monotone-safe proxy for the true per-block minimum.
func (s *BM25F) MaxQuality(hdr segment.BlockHeader) float64 {
	minLen := segment.MinFieldLength(hdr)
	if minLen == 0 {
		minLen = 1
	}
	return s.Score(hdr.MaxTF, minLen)
}

func (s *BM25F) UsesFinal() bool { return false }
