// Package quill is a segmented full-text search library: documents with
// typed fields are indexed into immutable on-disk segments published by
// atomic table-of-contents swaps, and Boolean, phrase, range, and
// wildcard queries are evaluated with BM25F ranking and block-level
// top-K pruning.
//
// The package is a facade: storage, segment format, matcher algebra,
// and the committing writer live under internal/ and are reached through
// Index, Writer, and Searcher.
package quill

import (
	"time"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/collector"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/index"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/searcher"
	"github.com/quillsearch/quill/internal/segment"
)

// Aliases surface the internal vocabulary types callers build requests
// from without re-wrapping every one of them.
type (
	Schema    = schema.Schema
	FieldKind = schema.FieldKind
	Query     = query.Query
	Value     = docvalue.Value
	StoredDoc = segment.StoredDoc
	Analyzer  = analysis.Analyzer

	// SegmentInfo identifies one live segment of a pinned snapshot.
	SegmentInfo = index.SegmentEntry

	// SearchOption adjusts one search call: filter, mask, time limit,
	// or sort-by-field.
	SearchOption = collector.Option
)

// NewSchema returns an empty schema; add fields with Schema.AddField and
// the FieldKind constructors.
func NewSchema() *Schema { return schema.New() }

// Field kind constructors, re-exported for callers assembling schemas.
var (
	TextField     = schema.TextField
	IDField       = schema.IDField
	UniqueIDField = schema.UniqueIDField
	NumericField  = schema.NumericField
	StoredField   = schema.StoredField
)

// Search call options, re-exported from the collector.
var (
	WithFilter    = collector.WithFilter
	WithMask      = collector.WithMask
	WithTimeLimit = collector.WithTimeLimit
	WithSortBy    = collector.WithSortBy
)

// Error classification helpers.
var (
	IsNotFound  = qerrors.IsNotFound
	IsLocked    = qerrors.IsLocked
	IsCorrupt   = qerrors.IsCorrupt
	IsTimeLimit = qerrors.IsTimeLimit
)

// Index is an open handle on one index directory. Writers and searchers
// are obtained from it; the handle itself holds no lock.
type Index struct {
	dir directory.Directory
	sch *Schema
	cfg config
}

// Open opens (creating if needed) a filesystem-backed index at path. The
// schema may extend the one the index was created with but must keep
// existing fields identical.
func Open(path string, sch *Schema, opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	dir, err := directory.NewFSDirectory(path, cfg.mmap)
	if err != nil {
		return nil, err
	}
	return openIn(dir, sch, cfg)
}

// OpenIn opens an index over an arbitrary storage backend, typically the
// in-memory directory in tests.
func OpenIn(dir directory.Directory, sch *Schema, opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return openIn(dir, sch, cfg)
}

func openIn(dir directory.Directory, sch *Schema, cfg config) (*Index, error) {
	toc, err := index.LatestTOC(dir)
	if err != nil {
		return nil, err
	}
	if sch == nil {
		sch = toc.Schema()
	} else if len(toc.Fields) > 0 && !toc.Schema().CompatibleWith(sch) {
		return nil, qerrors.SchemaMismatch("", "index schema is incompatible with the requested schema")
	}
	return &Index{dir: dir, sch: sch, cfg: cfg}, nil
}

// Schema returns the schema this handle operates with.
func (ix *Index) Schema() *Schema { return ix.sch }

func (ix *Index) writerOptions() index.Options {
	return index.Options{
		RAMLimitMB:       ix.cfg.ramLimitMB,
		LockTimeoutMs:    ix.cfg.lockTimeoutMs,
		MergeTierFactor:  ix.cfg.mergeTierFactor,
		MergeMinSegments: ix.cfg.mergeMinSegments,
		ReadOnly:         ix.cfg.readOnly,
		Analyzer:         ix.cfg.analyzer,
		Quality:          ix.cfg.quality,
		Logger:           ix.cfg.logger,
	}
}

// Writer returns the committing writer for this index. At most one
// writer should mutate an index at a time; commits are additionally
// serialized by the directory's advisory lock.
func (ix *Index) Writer() (*Writer, error) {
	if ix.cfg.readOnly {
		return nil, qerrors.ReadOnly("index opened read-only")
	}
	return &Writer{w: index.NewWriter(ix.dir, ix.sch, ix.writerOptions()), sch: ix.sch}, nil
}

// BufferedWriter returns a writer that batches documents over a size and
// time window, committing transparently when either trips.
func (ix *Index) BufferedWriter(maxDocs int, interval time.Duration) (*BufferedWriter, error) {
	w, err := ix.Writer()
	if err != nil {
		return nil, err
	}
	return &BufferedWriter{
		b:   index.NewBufferedWriter(w.w, maxDocs, interval),
		ix:  ix,
		sch: ix.sch,
	}, nil
}

// Searcher pins the current generation and returns a searcher over it.
// Commits after this call are invisible until a new Searcher is opened.
func (ix *Index) Searcher() (*Searcher, error) {
	snap, err := index.OpenSnapshot(ix.dir, ix.sch)
	if err != nil {
		return nil, err
	}
	return newSearcher(snap, ix.cfg), nil
}

// Writer buffers documents and publishes them with Commit.
type Writer struct {
	w   *index.Writer
	sch *Schema
}

// AddDocument buffers a document for the next commit.
func (w *Writer) AddDocument(doc Document) error {
	return w.w.AddDocument(doc)
}

// UpdateDocument replaces every prior document sharing the new
// document's unique-field value, then adds it. The schema must declare
// a unique field.
func (w *Writer) UpdateDocument(doc Document) error {
	return w.w.UpdateDocument(doc)
}

// DeleteByTerm tombstones, at the next commit, every committed document
// containing term in field. Documents still buffered in this writer are
// matched only when field is declared unique.
func (w *Writer) DeleteByTerm(field, term string) error {
	return w.w.DeleteByTerm(field, []byte(term))
}

// Commit durably publishes everything buffered as a new generation.
func (w *Writer) Commit() error { return w.w.Commit() }

// Optimize merges all live segments into one, dropping tombstones.
func (w *Writer) Optimize() error { return w.w.Optimize() }

// Close discards any uncommitted buffer.
func (w *Writer) Close() error { return w.w.Close() }

// BufferedWriter is the auto-committing writer variant. Its Searcher
// unions the committed snapshot with the uncommitted buffer.
type BufferedWriter struct {
	b   *index.BufferedWriter
	ix  *Index
	sch *Schema
}

func (b *BufferedWriter) AddDocument(doc Document) error    { return b.b.AddDocument(doc) }
func (b *BufferedWriter) UpdateDocument(doc Document) error { return b.b.UpdateDocument(doc) }
func (b *BufferedWriter) Commit() error                     { return b.b.Commit() }
func (b *BufferedWriter) Close() error                      { return b.b.Close() }

// Searcher pins the committed snapshot plus an overlay over the
// in-memory buffer, so uncommitted documents are searchable.
func (b *BufferedWriter) Searcher() (*Searcher, error) {
	snap, err := b.b.Reader()
	if err != nil {
		return nil, err
	}
	return newSearcher(snap, b.ix.cfg), nil
}

// Hit is one search result.
type Hit struct {
	// Score is the hit's ranked score.
	Score float64
	// Segment and DocID locate the hit within the pinned snapshot.
	Segment int
	DocID   uint32
	// Global is the hit's ID in the synthetic cross-segment space used
	// by filter and mask sets.
	Global uint32
}

// Searcher evaluates queries against a pinned snapshot.
type Searcher struct {
	s    *searcher.Searcher
	snap *index.Snapshot
}

func newSearcher(snap *index.Snapshot, cfg config) *Searcher {
	return &Searcher{
		s: searcher.New(snap, searcher.Options{
			ExpansionLimit: cfg.expansionLimit,
			FieldParams:    cfg.fieldParams,
		}),
		snap: snap,
	}
}

// Search returns up to k hits best-first. When a time limit expires the
// partial hits are returned alongside a time-limit error.
func (s *Searcher) Search(q Query, k int, opts ...SearchOption) ([]Hit, error) {
	hits, err := s.s.Search(q, k, opts...)
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{Score: h.Score, Segment: h.Segment, DocID: h.DocID, Global: h.Global}
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

// StoredFields resolves a hit's stored document.
func (s *Searcher) StoredFields(hit Hit) (StoredDoc, error) {
	return s.s.StoredFields(collector.Hit{Segment: hit.Segment, DocID: hit.DocID, Global: hit.Global})
}

// SortByField orders results by a stored field's value instead of score.
// Score-based block pruning is disabled for the call; ties and missing
// values fall back to doc order.
func (s *Searcher) SortByField(field string, descending bool) SearchOption {
	value := func(h collector.Hit) (Value, bool) {
		doc, err := s.s.StoredFields(h)
		if err != nil {
			return Value{}, false
		}
		v, ok := doc[field]
		return v, ok
	}
	// The collector keeps its worst hit at the heap root, so "less"
	// means "worse than".
	return WithSortBy(func(a, b collector.Hit) bool {
		av, aok := value(a)
		bv, bok := value(b)
		if aok != bok {
			return !aok // missing values sort worst
		}
		if c := docvalue.Compare(av, bv); c != 0 {
			if descending {
				return c < 0
			}
			return c > 0
		}
		return a.Global > b.Global
	})
}

// DocCount returns the number of live documents in the pinned snapshot.
func (s *Searcher) DocCount() int { return s.snap.DocCount() }

// Entries lists the pinned snapshot's segments in traversal order.
func (s *Searcher) Entries() []SegmentInfo { return s.snap.Entries }

// Generation returns the pinned snapshot's generation.
func (s *Searcher) Generation() uint64 { return s.snap.Generation }

// Close releases the pinned segment files.
func (s *Searcher) Close() error { return s.snap.Close() }
