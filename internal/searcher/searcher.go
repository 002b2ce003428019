// Package searcher turns a query tree into a matcher tree per segment,
// drives the top-K collector across the snapshot's segments in stable
// order, and resolves hits back to stored fields.
package searcher

import (
	"github.com/quillsearch/quill/internal/collector"
	"github.com/quillsearch/quill/internal/index"
	"github.com/quillsearch/quill/internal/matcher"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/internal/scoring"
	"github.com/quillsearch/quill/internal/segment"
)

// Options tune query evaluation.
type Options struct {
	// ExpansionLimit bounds how many terms a wildcard, prefix, range, or
	// fuzzy query may expand to per segment. 0 means unlimited.
	ExpansionLimit int
	// FieldParams overrides the BM25F tuning per field.
	FieldParams map[string]scoring.FieldParams
}

// Searcher evaluates queries against one pinned snapshot. It caches
// collection statistics (document frequencies, average field lengths)
// across the snapshot's segments so per-posting scoring is cheap.
type Searcher struct {
	snap *index.Snapshot
	opts Options

	bases     []uint32 // per-segment offset into the global doc space
	totalDocs int

	avgLen  map[string]float64
	scorers map[string]*scoring.BM25F // key: field + "\x00" + term
}

func New(snap *index.Snapshot, opts Options) *Searcher {
	s := &Searcher{
		snap:    snap,
		opts:    opts,
		avgLen:  make(map[string]float64),
		scorers: make(map[string]*scoring.BM25F),
	}
	var base uint32
	for _, r := range snap.Segments {
		s.bases = append(s.bases, base)
		base += uint32(r.DocCountAll())
		s.totalDocs += r.DocCount()
	}
	return s
}

// Snapshot returns the pinned snapshot this searcher evaluates against.
func (s *Searcher) Snapshot() *index.Snapshot { return s.snap }

func (s *Searcher) fieldParams(field string) scoring.FieldParams {
	if p, ok := s.opts.FieldParams[field]; ok {
		return p
	}
	return scoring.DefaultFieldParams()
}

// avgFieldLength combines per-segment averages weighted by doc count.
func (s *Searcher) avgFieldLength(field string) float64 {
	if v, ok := s.avgLen[field]; ok {
		return v
	}
	var sum float64
	var n int
	for _, r := range s.snap.Segments {
		if avg := r.FieldLength(field); avg > 0 {
			sum += avg * float64(r.DocCountAll())
			n += r.DocCountAll()
		}
	}
	v := 0.0
	if n > 0 {
		v = sum / float64(n)
	}
	s.avgLen[field] = v
	return v
}

// df sums a term's document frequency across segments.
func (s *Searcher) df(field string, term []byte) uint64 {
	var df uint64
	for _, r := range s.snap.Segments {
		if ti, ok := r.TermInfo(field, term); ok {
			df += ti.DF
		}
	}
	return df
}

// scorerFor builds (and caches) the BM25F scorer for one (field, term)
// leaf, shared by that leaf's matchers across every segment.
func (s *Searcher) scorerFor(field string, term []byte) *scoring.BM25F {
	key := field + "\x00" + string(term)
	if sc, ok := s.scorers[key]; ok {
		return sc
	}
	sc := scoring.NewBM25F(s.fieldParams(field), s.totalDocs, s.df(field, term), s.avgFieldLength(field))
	s.scorers[key] = sc
	return sc
}

// Search evaluates q, returning up to k hits best-first. A time-limit
// expiry returns the partial hits gathered so far alongside the error so
// callers can choose to surface them.
func (s *Searcher) Search(q query.Query, k int, copts ...collector.Option) ([]collector.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	c := collector.NewTopN(k, copts...)
	for i, r := range s.snap.Segments {
		m, err := s.build(q, r)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if err := c.Collect(i, s.bases[i], m); err != nil {
			if qerrors.IsTimeLimit(err) {
				return c.Results(), err
			}
			return nil, err
		}
	}
	return c.Results(), nil
}

// StoredFields resolves a hit's stored document.
func (s *Searcher) StoredFields(hit collector.Hit) (segment.StoredDoc, error) {
	if hit.Segment < 0 || hit.Segment >= len(s.snap.Segments) {
		return nil, qerrors.NotFound("segment")
	}
	return s.snap.Segments[hit.Segment].StoredFields(hit.DocID)
}

// build constructs the matcher tree for one segment, bottom-up. A nil
// matcher (without error) means the query cannot match anything in this
// segment.
func (s *Searcher) build(q query.Query, r *segment.Reader) (matcher.Matcher, error) {
	deleted := r.DeletedBitmap()
	switch node := q.(type) {
	case query.Term:
		m, ok := matcher.NewTermMatcher(r, node.Field, node.Term, s.scorerFor(node.Field, node.Term), deleted)
		if !ok {
			return nil, nil
		}
		return m, nil

	case query.Phrase:
		if len(node.Terms) == 0 {
			return nil, nil
		}
		if !r.FieldHasPositions(node.Field) {
			if _, ok := r.FieldDict(node.Field); !ok {
				return nil, nil // field absent here; other segments may carry it
			}
			return nil, qerrors.SchemaMismatch(node.Field, "phrase query requires a field indexed with positions")
		}
		words := make([]matcher.Positioned, 0, len(node.Terms))
		for _, term := range node.Terms {
			m, ok := matcher.NewTermMatcher(r, node.Field, term, s.scorerFor(node.Field, term), deleted)
			if !ok {
				return nil, nil
			}
			words = append(words, m)
		}
		return matcher.NewPhrase(words, node.Slop), nil

	case query.And:
		children := make([]matcher.Matcher, 0, len(node.Children))
		for _, cq := range node.Children {
			m, err := s.build(cq, r)
			if err != nil {
				return nil, err
			}
			if m == nil {
				return nil, nil
			}
			children = append(children, m)
		}
		if len(children) == 0 {
			return nil, nil
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return matcher.NewConjunction(children), nil

	case query.Or:
		children := make([]matcher.Matcher, 0, len(node.Children))
		for _, cq := range node.Children {
			m, err := s.build(cq, r)
			if err != nil {
				return nil, err
			}
			if m != nil {
				children = append(children, m)
			}
		}
		if len(children) == 0 {
			return nil, nil
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return matcher.NewDisjunction(children), nil

	case query.AndNot:
		include, err := s.build(node.Include, r)
		if err != nil || include == nil {
			return nil, err
		}
		exclude, err := s.build(node.Exclude, r)
		if err != nil {
			return nil, err
		}
		if exclude == nil {
			return include, nil
		}
		return matcher.NewNegation(include, exclude), nil

	case query.Range:
		return s.expand(r, node.Field, func(dict segment.Dict) (matcher.Expansion, error) {
			return matcher.ExpandRange(dict, node.Lo, node.Hi, node.InclLo, node.InclHi, s.opts.ExpansionLimit)
		})

	case query.Prefix:
		return s.expand(r, node.Field, func(dict segment.Dict) (matcher.Expansion, error) {
			return matcher.ExpandPrefix(dict, node.Prefix, s.opts.ExpansionLimit)
		})

	case query.Wildcard:
		return s.expand(r, node.Field, func(dict segment.Dict) (matcher.Expansion, error) {
			return matcher.ExpandWildcard(dict, node.Pattern, s.opts.ExpansionLimit)
		})

	case query.Fuzzy:
		return s.expand(r, node.Field, func(dict segment.Dict) (matcher.Expansion, error) {
			return matcher.ExpandTermSet(dict, node.Terms), nil
		})

	case query.Every:
		if node.Field == "" {
			return matcher.NewAll(r.DocCountAll(), deleted, 1), nil
		}
		return s.expand(r, node.Field, func(dict segment.Dict) (matcher.Expansion, error) {
			return matcher.ExpandPrefix(dict, nil, 0)
		})

	case query.Boost:
		child, err := s.build(node.Child, r)
		if err != nil || child == nil {
			return nil, err
		}
		return matcher.NewBoost(child, node.Factor), nil

	case query.Constant:
		child, err := s.build(node.Child, r)
		if err != nil || child == nil {
			return nil, err
		}
		return matcher.NewConstScore(child, node.Score), nil
	}
	return nil, qerrors.NotFound("query kind")
}

// expand runs a dictionary scan and unions the resulting term matchers.
func (s *Searcher) expand(r *segment.Reader, field string, scan func(segment.Dict) (matcher.Expansion, error)) (matcher.Matcher, error) {
	dict, ok := r.FieldDict(field)
	if !ok {
		return nil, nil
	}
	exp, err := scan(dict)
	if err != nil {
		return nil, err
	}
	if len(exp.Terms) == 0 {
		return nil, nil
	}
	deleted := r.DeletedBitmap()
	children := make([]matcher.Matcher, len(exp.Terms))
	for i := range exp.Terms {
		children[i] = matcher.NewTermMatcherFromInfo(r, field, exp.Infos[i], s.scorerFor(field, exp.Terms[i]), deleted)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return matcher.NewDisjunction(children), nil
}
