// Package collector drives a matcher over one or more segments,
// maintaining a bounded min-heap of the best K hits and pruning posting
// blocks that cannot enter it.
package collector

import (
	"container/heap"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/quillsearch/quill/internal/matcher"
	"github.com/quillsearch/quill/internal/qerrors"
)

// Hit is one collected document: its position in the snapshot's segment
// list, its segment-local doc ID, the synthetic global ID used for heap
// ordering across segments, and its score.
type Hit struct {
	Segment int
	DocID   uint32
	Global  uint32
	Score   float64
}

// hitHeap keeps the current worst hit at the root so it can be evicted
// the moment a better one arrives.
type hitHeap struct {
	hits []Hit
	less func(a, b Hit) bool // true when a is worse than b
}

func (h *hitHeap) Len() int            { return len(h.hits) }
func (h *hitHeap) Less(i, j int) bool  { return h.less(h.hits[i], h.hits[j]) }
func (h *hitHeap) Swap(i, j int)       { h.hits[i], h.hits[j] = h.hits[j], h.hits[i] }
func (h *hitHeap) Push(x interface{})  { h.hits = append(h.hits, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := h.hits
	n := len(old)
	x := old[n-1]
	h.hits = old[:n-1]
	return x
}

// scoreWorse orders by ascending score; equal scores break toward the
// higher global doc ID, so earlier documents win ties.
func scoreWorse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Global > b.Global
}

const defaultCheckEvery = 1024

// TopN is the top-K driver. Zero or more wrapping behaviors (filter,
// mask, time limit, sort-by-field) are applied via options at
// construction.
type TopN struct {
	k    int
	heap hitHeap

	filter *roaring.Bitmap
	mask   *roaring.Bitmap

	deadline   time.Time
	checkEvery int
	seen       int

	byField bool // sort-by-field mode disables score pruning
}

// Option configures a TopN collector.
type Option func(*TopN)

// WithFilter keeps only documents present in the set, expressed in the
// synthetic global doc-ID space. Membership is tested lazily per
// candidate.
func WithFilter(set *roaring.Bitmap) Option {
	return func(c *TopN) { c.filter = set }
}

// WithMask drops documents present in the set.
func WithMask(set *roaring.Bitmap) Option {
	return func(c *TopN) { c.mask = set }
}

// WithTimeLimit sets a soft deadline, polled every checkEvery postings
// (0 uses a default). On expiry Collect returns a time-limit error and
// the heap keeps whatever was gathered so far.
func WithTimeLimit(deadline time.Time, checkEvery int) Option {
	return func(c *TopN) {
		c.deadline = deadline
		if checkEvery > 0 {
			c.checkEvery = checkEvery
		}
	}
}

// WithSortBy replaces the score comparator with a field-value comparator
// (less reports a worse than b). Score-based block pruning is disabled in
// this mode since block quality bounds say nothing about column values.
func WithSortBy(less func(a, b Hit) bool) Option {
	return func(c *TopN) {
		c.heap.less = less
		c.byField = true
	}
}

func NewTopN(k int, opts ...Option) *TopN {
	c := &TopN{k: k, checkEvery: defaultCheckEvery}
	c.heap.less = scoreWorse
	for _, o := range opts {
		o(c)
	}
	return c
}

// threshold is the current K-th score, the pruning bar new postings must
// clear once the heap is full.
func (c *TopN) threshold() float64 {
	return c.heap.hits[0].Score
}

// Collect drains m, offsetting its segment-local IDs by base into the
// global space. Call once per segment in the snapshot's stable order.
func (c *TopN) Collect(segIdx int, base uint32, m matcher.Matcher) error {
	if m == nil {
		return nil
	}
	full := c.heap.Len() >= c.k
	prune := !c.byField && m.SupportsQuality()
	for m.IsActive() {
		if full && prune {
			before := m.ID()
			if err := m.SkipToQuality(c.threshold()); err != nil {
				return err
			}
			if !m.IsActive() {
				break
			}
			if m.ID() != before {
				// Landed on a fresh posting; evaluate it before
				// advancing again.
				continue
			}
		}
		id := m.ID()
		global := base + id
		if (c.filter == nil || c.filter.Contains(global)) &&
			(c.mask == nil || !c.mask.Contains(global)) {
			hit := Hit{Segment: segIdx, DocID: id, Global: global, Score: m.Score()}
			if !full {
				heap.Push(&c.heap, hit)
				full = c.heap.Len() >= c.k
			} else if c.heap.less(c.heap.hits[0], hit) {
				c.heap.hits[0] = hit
				heap.Fix(&c.heap, 0)
			}
		}
		c.seen++
		if !c.deadline.IsZero() && c.seen%c.checkEvery == 0 && time.Now().After(c.deadline) {
			return qerrors.TimeLimit()
		}
		if err := m.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Results pops the heap into best-first order. The collector is spent
// afterwards.
func (c *TopN) Results() []Hit {
	out := make([]Hit, c.heap.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&c.heap).(Hit)
	}
	return out
}
