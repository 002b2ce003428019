package index

import (
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/internal/writer"
)

// Options are the writer coordinator's knobs. Zero values select the
// documented defaults.
type Options struct {
	RAMLimitMB       int
	LockTimeoutMs    int
	MergeTierFactor  float64
	MergeMinSegments int
	ReadOnly         bool
	Analyzer         analysis.Analyzer
	Quality          writer.QualityFn
	Logger           *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.MergeTierFactor <= 1 {
		o.MergeTierFactor = 10
	}
	if o.MergeMinSegments <= 1 {
		o.MergeMinSegments = 4
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// fieldTerm is one pending delete-by-term against committed segments.
type fieldTerm struct {
	field string
	term  []byte
}

// Writer is the single-writer coordinator: it buffers documents in a
// segment writer, serializes every commit behind the directory's
// advisory lock, publishes each commit as an atomic TOC swap, and
// applies the tiered merge policy afterwards.
type Writer struct {
	dir  directory.Directory
	sch  *schema.Schema
	opts Options
	log  *zap.SugaredLogger

	mu             sync.Mutex
	seg            *writer.SegmentWriter
	pendingDeletes []fieldTerm
	closed         bool

	// beforePublish, when set, runs after segment files are durably
	// written but before the TOC is swapped; tests use it to simulate a
	// writer crash at the narrowest point of the commit protocol.
	beforePublish func() error
}

func NewWriter(dir directory.Directory, sch *schema.Schema, opts Options) *Writer {
	opts = opts.withDefaults()
	w := &Writer{dir: dir, sch: sch, opts: opts, log: opts.Logger}
	w.seg = w.newSegmentWriter()
	return w
}

func (w *Writer) newSegmentWriter() *writer.SegmentWriter {
	return writer.NewSegmentWriter(w.dir, w.sch, writer.Config{
		RAMLimitMB: w.opts.RAMLimitMB,
		Analyzer:   w.opts.Analyzer,
		Quality:    w.opts.Quality,
		Logger:     w.log,
	})
}

func (w *Writer) checkWritable() error {
	if w.opts.ReadOnly {
		return qerrors.ReadOnly("index opened read-only")
	}
	if w.closed {
		return qerrors.ReadOnly("writer closed")
	}
	return nil
}

// AddDocument buffers one document for the next commit.
func (w *Writer) AddDocument(fields map[string]docvalue.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritable(); err != nil {
		return err
	}
	_, err := w.seg.AddDocument(fields)
	return err
}

// UpdateDocument deletes every prior document sharing any of the new
// document's unique-field values, then buffers the new document. Both
// committed segments (via tombstones at commit time) and documents
// buffered earlier in this batch are covered.
func (w *Writer) UpdateDocument(fields map[string]docvalue.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritable(); err != nil {
		return err
	}
	uniques := w.sch.UniqueFields()
	if len(uniques) == 0 {
		return qerrors.SchemaMismatch("", "update requires a schema with a unique field")
	}
	for _, name := range uniques {
		v, ok := fields[name]
		if !ok {
			continue
		}
		kind, _ := w.sch.Field(name)
		term, err := writer.TermBytes(kind, v)
		if err != nil {
			return err
		}
		w.deleteTermLocked(name, term)
	}
	_, err := w.seg.AddDocument(fields)
	return err
}

// DeleteByTerm tombstones every committed document containing term in
// field at the next commit, plus any buffered document whose unique
// field equals it.
func (w *Writer) DeleteByTerm(field string, term []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritable(); err != nil {
		return err
	}
	w.deleteTermLocked(field, term)
	return nil
}

func (w *Writer) deleteTermLocked(field string, term []byte) {
	w.pendingDeletes = append(w.pendingDeletes, fieldTerm{field: field, term: append([]byte(nil), term...)})
	for _, docID := range w.seg.BufferedMatches(field, term) {
		w.seg.Tombstone(docID)
	}
}

// acquireLock takes the advisory write lock, polling until the
// configured timeout when the lock is contended.
func (w *Writer) acquireLock() (directory.Lock, error) {
	deadline := time.Now().Add(time.Duration(w.opts.LockTimeoutMs) * time.Millisecond)
	for {
		lk, err := w.dir.Lock(LockFile)
		if err == nil {
			return lk, nil
		}
		if !qerrors.IsLocked(err) || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Commit publishes the buffered documents and pending deletes as a new
// generation. A commit with nothing buffered and nothing to delete is a
// no-op. The sequence is: lock, write and sync segment files, write and
// sync deletion bitsets, write the TOC to a temp name, atomically rename
// it, clean orphans best-effort, unlock.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritable(); err != nil {
		return err
	}
	return w.commitLocked()
}

func (w *Writer) commitLocked() error {
	newTOC, err := w.publish()
	if err != nil || newTOC == nil {
		return err
	}
	return w.maybeMerge(newTOC)
}

// publish performs the locked portion of a commit and returns the
// published TOC, or nil when there was nothing to commit.
func (w *Writer) publish() (*TOC, error) {
	if !w.seg.HasDocs() && len(w.pendingDeletes) == 0 {
		return nil, nil
	}

	lk, err := w.acquireLock()
	if err != nil {
		return nil, err
	}
	defer lk.Close()

	toc, err := LatestTOC(w.dir)
	if err != nil {
		return nil, err
	}
	if len(toc.Fields) > 0 && !toc.Schema().CompatibleWith(w.sch) {
		return nil, qerrors.SchemaMismatch("", "index schema is incompatible with the writer's schema")
	}
	newGen := toc.Generation + 1

	if err := w.applyDeletes(toc); err != nil {
		return nil, err
	}

	entries := append([]SegmentEntry(nil), toc.Segments...)
	if w.seg.HasDocs() {
		id := segmentID(newGen)
		hdr, err := w.seg.Flush(id, newGen)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SegmentEntry{ID: id, Generation: newGen, DocCount: hdr.DocCount})
	}

	if w.beforePublish != nil {
		if err := w.beforePublish(); err != nil {
			return nil, err
		}
	}

	newTOC := &TOC{Generation: newGen, Fields: w.sch.Fields(), Segments: entries}
	if err := writeTOC(w.dir, newTOC); err != nil {
		return nil, err
	}
	w.cleanup(newTOC)
	w.log.Infow("committed", "generation", newGen, "segments", len(entries))

	w.seg = w.newSegmentWriter()
	w.pendingDeletes = nil

	return newTOC, nil
}

// applyDeletes resolves the pending delete terms against every committed
// segment and rewrites the affected deletion bitsets. Bitset files are
// synced before the TOC rename so a published generation never
// references an unsynced tombstone set.
func (w *Writer) applyDeletes(toc *TOC) error {
	if len(w.pendingDeletes) == 0 {
		return nil
	}
	for _, e := range toc.Segments {
		r, err := segment.Open(w.dir, e.ID, w.sch)
		if err != nil {
			return err
		}
		bitmap := r.DeletedBitmap().Clone()
		before := bitmap.GetCardinality()
		for _, d := range w.pendingDeletes {
			matches, err := collectMatches(r, d.field, d.term)
			if err != nil {
				_ = r.Close()
				return err
			}
			bitmap.AddMany(matches)
		}
		closeErr := r.Close()
		if closeErr != nil {
			return closeErr
		}
		if bitmap.GetCardinality() == before {
			continue
		}
		buf, err := bitmap.MarshalBinary()
		if err != nil {
			return err
		}
		f, err := w.dir.CreateFile(e.ID + ".del")
		if err != nil {
			return err
		}
		if _, err := f.Write(buf); err != nil {
			return multierr.Append(err, f.Close())
		}
		if err := f.Close(); err != nil {
			return err
		}
		w.log.Debugw("updated deletion bitset", "segment", e.ID, "deleted", bitmap.GetCardinality())
	}
	return nil
}

// collectMatches lists every local doc ID containing term, tombstoned or
// not; re-deleting a deleted doc is harmless.
func collectMatches(r *segment.Reader, field string, term []byte) ([]uint32, error) {
	ti, ok := r.TermInfo(field, term)
	if !ok {
		return nil, nil
	}
	if ti.InlinePosting != nil {
		return []uint32{ti.InlinePosting.DocID}, nil
	}
	var out []uint32
	var prevLastDoc uint32
	for _, bp := range ti.Blocks {
		postings, _, err := r.DecodeBlockAt(field, bp, prevLastDoc)
		if err != nil {
			return nil, err
		}
		prevLastDoc = bp.LastDoc
		for _, p := range postings {
			out = append(out, p.DocID)
		}
	}
	return out, nil
}

// cleanup deletes files the new TOC no longer references: older TOCs,
// segments merged away, and leftovers of crashed commits. Best-effort;
// a failure here never fails the commit.
func (w *Writer) cleanup(toc *TOC) {
	names, err := w.dir.List()
	if err != nil {
		return
	}
	live := make(map[string]bool)
	for _, e := range toc.Segments {
		for _, f := range writer.SegmentFiles(e.ID) {
			live[f] = true
		}
	}
	live[tocName(toc.Generation)] = true
	live[LockFile] = true
	for _, name := range names {
		if live[name] {
			continue
		}
		if gen, ok := parseTOCGen(name); ok {
			if gen < toc.Generation {
				_ = w.dir.Delete(name)
			}
			continue
		}
		if strings.HasSuffix(name, tmpSuffix) || strings.HasPrefix(name, "s") {
			_ = w.dir.Delete(name)
		}
	}
}

// tier buckets a segment by the logarithm of its size, so segments of
// similar magnitude merge together.
func (w *Writer) tier(docCount int) int {
	if docCount < 1 {
		docCount = 1
	}
	return int(math.Log(float64(docCount)) / math.Log(w.opts.MergeTierFactor))
}

// maybeMerge applies the tiered merge policy, repeating until no tier
// holds enough segments. Called with the coordinator mutex held but the
// file lock released; each merge round commits under its own lock hold.
func (w *Writer) maybeMerge(toc *TOC) error {
	for {
		byTier := make(map[int][]SegmentEntry)
		for _, e := range toc.Segments {
			t := w.tier(e.DocCount)
			byTier[t] = append(byTier[t], e)
		}
		var group []SegmentEntry
		for _, entries := range byTier {
			if len(entries) >= w.opts.MergeMinSegments {
				group = entries
				break
			}
		}
		if group == nil {
			return nil
		}
		merged, err := w.mergeGroup(toc, group)
		if err != nil {
			return err
		}
		toc = merged
	}
}

// Optimize forces a merge of every live segment (and its tombstones)
// into a single segment. Optimizing an already-optimal index changes
// nothing, so a second call in a row is a no-op.
func (w *Writer) Optimize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritable(); err != nil {
		return err
	}
	if w.seg.HasDocs() || len(w.pendingDeletes) > 0 {
		if err := w.commitLocked(); err != nil {
			return err
		}
	}
	toc, err := LatestTOC(w.dir)
	if err != nil {
		return err
	}
	if len(toc.Segments) == 0 {
		return nil
	}
	if len(toc.Segments) == 1 {
		r, err := segment.Open(w.dir, toc.Segments[0].ID, w.sch)
		if err != nil {
			return err
		}
		hasDeletions := r.HasDeletions()
		_ = r.Close()
		if !hasDeletions {
			return nil
		}
	}
	_, err = w.mergeGroup(toc, toc.Segments)
	return err
}

// mergeGroup rewrites group as one segment and publishes a TOC where the
// sources are replaced by the result. Source files are unlinked only
// after the new TOC lands.
func (w *Writer) mergeGroup(toc *TOC, group []SegmentEntry) (*TOC, error) {
	lk, err := w.acquireLock()
	if err != nil {
		return nil, err
	}
	defer lk.Close()

	newGen := toc.Generation + 1
	id := segmentID(newGen)

	readers := make([]*segment.Reader, 0, len(group))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()
	inGroup := make(map[string]bool, len(group))
	for _, e := range group {
		r, err := segment.Open(w.dir, e.ID, w.sch)
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
		inGroup[e.ID] = true
	}

	hdr := segment.Header{ID: id, Generation: newGen, SchemaFP: w.sch.Fingerprint()}
	hdr, err = writer.MergeSegments(w.dir, readers, hdr, w.opts.Quality, w.log)
	if err != nil {
		return nil, err
	}

	var entries []SegmentEntry
	for _, e := range toc.Segments {
		if !inGroup[e.ID] {
			entries = append(entries, e)
		}
	}
	entries = append(entries, SegmentEntry{ID: id, Generation: newGen, DocCount: hdr.DocCount})

	newTOC := &TOC{Generation: newGen, Fields: w.sch.Fields(), Segments: entries}
	if err := writeTOC(w.dir, newTOC); err != nil {
		return nil, err
	}
	w.cleanup(newTOC)
	return newTOC, nil
}

// Close discards any uncommitted buffer and marks the writer unusable.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if w.seg.HasDocs() {
		w.log.Warnw("closing writer with uncommitted documents", "buffered", w.seg.DocCount())
	}
	w.seg.Abort()
	w.closed = true
	return nil
}
