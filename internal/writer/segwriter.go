// Package writer accumulates documents in memory, spills sorted runs
// when the configured RAM budget is exceeded, and on flush k-way merges
// runs plus the in-memory tail into an immutable segment's file set.
package writer

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/bytecodec"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/segment"
)

// QualityFn computes the stored per-block quality upper bound from a
// block's sufficient statistics. It must be monotone in MaxTF so that a
// larger recorded tf never yields a smaller stored bound.
type QualityFn func(hdr segment.BlockHeader) float64

// DefaultQuality is a tf-saturation bound with the conventional k1; it
// carries no collection statistics (those are query-time) and exists so
// the dictionary's per-term maximum is comparable across blocks.
func DefaultQuality(hdr segment.BlockHeader) float64 {
	tf := float64(hdr.MaxTF)
	return tf / (tf + 1.2)
}

// postingList is the in-memory accumulator entry for one (field, term).
type postingList struct {
	postings []segment.Posting
}

// Config carries the knobs a SegmentWriter needs beyond its schema.
type Config struct {
	RAMLimitMB int
	Analyzer   analysis.Analyzer
	Quality    QualityFn
	Logger     *zap.SugaredLogger
}

// SegmentWriter builds exactly one segment. It is not safe for
// concurrent use; serialization is the coordinator's job.
type SegmentWriter struct {
	dir      directory.Directory
	sch      *schema.Schema
	an       analysis.Analyzer
	quality  QualityFn
	log      *zap.SugaredLogger
	ramLimit int

	docCount uint32
	postings map[string]*postingList // key: field + "\x00" + term
	memBytes int

	runs   []string
	runSeq int

	stored  []byte
	lengths map[string]map[uint32]uint32

	// uniqueDocs tracks buffered docs by their unique-field terms so an
	// update arriving in the same batch can tombstone its predecessor.
	// Unique fields are never spilled; identifiers are small.
	uniqueDocs map[string]map[string][]uint32
	deleted    *roaring.Bitmap
}

func NewSegmentWriter(dir directory.Directory, sch *schema.Schema, cfg Config) *SegmentWriter {
	an := cfg.Analyzer
	if an == nil {
		an = analysis.Simple{}
	}
	quality := cfg.Quality
	if quality == nil {
		quality = DefaultQuality
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ramLimit := cfg.RAMLimitMB
	if ramLimit <= 0 {
		ramLimit = 64
	}
	return &SegmentWriter{
		dir:        dir,
		sch:        sch,
		an:         an,
		quality:    quality,
		log:        log,
		ramLimit:   ramLimit << 20,
		postings:   make(map[string]*postingList),
		lengths:    make(map[string]map[uint32]uint32),
		uniqueDocs: make(map[string]map[string][]uint32),
		deleted:    roaring.New(),
	}
}

// DocCount returns the number of buffered documents, tombstoned or not.
func (w *SegmentWriter) DocCount() int { return int(w.docCount) }

// HasDocs reports whether anything has been buffered since construction.
func (w *SegmentWriter) HasDocs() bool { return w.docCount > 0 }

func accKey(field string, term []byte) string {
	return field + "\x00" + string(term)
}

func splitAccKey(key string) (string, []byte) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], []byte(key[i+1:])
		}
	}
	return key, nil
}

// TermBytes derives the single index term for an untokenized field value.
func TermBytes(kind schema.FieldKind, v docvalue.Value) ([]byte, error) {
	if kind.Numeric {
		switch v.Kind {
		case docvalue.KindInt64:
			return bytecodec.PutOrderedInt64(nil, v.Int), nil
		case docvalue.KindFloat64:
			return bytecodec.PutFloat64(nil, v.Float), nil
		default:
			return nil, qerrors.Indexing(kind.Name, "numeric field requires an int64 or float64 value")
		}
	}
	switch v.Kind {
	case docvalue.KindString:
		return []byte(v.Str), nil
	case docvalue.KindBytes:
		return v.Bytes, nil
	default:
		return nil, qerrors.Indexing(kind.Name, "untokenized field requires a string or bytes value")
	}
}

// AddDocument buffers one document, returning its segment-local doc ID.
// Field values inconsistent with their declared kind surface an indexing
// error; the caller is expected to abort the pending commit.
func (w *SegmentWriter) AddDocument(fields map[string]docvalue.Value) (uint32, error) {
	docID := w.docCount

	storedDoc := make(segment.StoredDoc)
	for name, v := range fields {
		kind, err := w.sch.MustField(name)
		if err != nil {
			return 0, err
		}
		if kind.Stored {
			storedDoc[name] = v
		}
		if !kind.Indexed {
			continue
		}
		if kind.Tokenized {
			if v.Kind != docvalue.KindString {
				return 0, qerrors.Indexing(name, "tokenized field requires a string value")
			}
			tokens := w.an.Analyze(name, v.Str)
			w.addTokens(docID, kind, tokens)
			if kind.Scorable {
				w.setLength(name, docID, uint32(len(tokens)))
			}
		} else {
			term, err := TermBytes(kind, v)
			if err != nil {
				return 0, err
			}
			w.addTerm(docID, kind, term, 1, nil)
			if kind.Scorable {
				w.setLength(name, docID, 1)
			}
			if kind.Unique {
				w.recordUnique(name, term, docID)
			}
		}
	}

	// Every doc gets a stored record, empty or not, so record index k
	// is always doc k.
	w.stored = segment.EncodeStored(w.stored, storedDoc)
	w.docCount++

	if w.memBytes > w.ramLimit {
		if err := w.spill(); err != nil {
			return 0, err
		}
	}
	return docID, nil
}

// addTokens folds an analyzed token stream into per-term postings.
func (w *SegmentWriter) addTokens(docID uint32, kind schema.FieldKind, tokens []analysis.Token) {
	byTerm := make(map[string][]uint32)
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		k := string(t.Term)
		if _, seen := byTerm[k]; !seen {
			order = append(order, k)
		}
		byTerm[k] = append(byTerm[k], uint32(t.Position))
	}
	for _, term := range order {
		positions := byTerm[term]
		if !kind.Positions {
			w.addTerm(docID, kind, []byte(term), uint32(len(positions)), nil)
		} else {
			w.addTerm(docID, kind, []byte(term), uint32(len(positions)), positions)
		}
	}
}

func (w *SegmentWriter) addTerm(docID uint32, kind schema.FieldKind, term []byte, tf uint32, positions []uint32) {
	key := accKey(kind.Name, term)
	pl, ok := w.postings[key]
	if !ok {
		pl = &postingList{}
		w.postings[key] = pl
		w.memBytes += len(key) + 48
	}
	pl.postings = append(pl.postings, segment.Posting{DocID: docID, TF: tf, Positions: positions})
	w.memBytes += 16 + 4*len(positions)
}

func (w *SegmentWriter) setLength(field string, docID, length uint32) {
	m, ok := w.lengths[field]
	if !ok {
		m = make(map[uint32]uint32)
		w.lengths[field] = m
	}
	m[docID] = length
	w.memBytes += 8
}

func (w *SegmentWriter) recordUnique(field string, term []byte, docID uint32) {
	m, ok := w.uniqueDocs[field]
	if !ok {
		m = make(map[string][]uint32)
		w.uniqueDocs[field] = m
	}
	m[string(term)] = append(m[string(term)], docID)
}

// BufferedMatches returns the buffered (not yet flushed) doc IDs whose
// unique field equals term.
func (w *SegmentWriter) BufferedMatches(field string, term []byte) []uint32 {
	m, ok := w.uniqueDocs[field]
	if !ok {
		return nil
	}
	return m[string(term)]
}

// Tombstone marks a buffered doc deleted; it still occupies its local ID
// and still counts toward df, but carries a deletion bit in the flushed
// segment.
func (w *SegmentWriter) Tombstone(docID uint32) {
	w.deleted.Add(docID)
}

// spill sorts the accumulator and writes it as one run, clearing the
// in-memory postings. Stored fields, lengths, and unique-term tracking
// stay resident; only the posting lists dominate memory.
func (w *SegmentWriter) spill() error {
	if len(w.postings) == 0 {
		return nil
	}
	name := fmt.Sprintf("run.%d.tmp", w.runSeq)
	w.runSeq++

	keys := make([]string, 0, len(w.postings))
	for k := range w.postings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := w.dir.CreateFile(name)
	if err != nil {
		return err
	}
	var buf []byte
	for _, k := range keys {
		field, term := splitAccKey(k)
		buf = encodeRunRecord(buf[:0], field, term, w.postings[k].postings)
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	w.log.Debugw("spilled posting run", "run", name, "terms", len(keys), "bytes", w.memBytes)
	w.runs = append(w.runs, name)
	w.postings = make(map[string]*postingList)
	w.memBytes = 0
	return nil
}

// Abort removes any spilled run files; the in-memory state is simply
// dropped with the writer.
func (w *SegmentWriter) Abort() {
	for _, r := range w.runs {
		_ = w.dir.Delete(r)
	}
	w.runs = nil
}
