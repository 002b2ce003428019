package index

import (
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/segment"
)

// BufferedWriter batches document calls over a size and time window,
// committing transparently when either trips. Its Reader unions the
// on-disk snapshot with an overlay segment materialized from the
// in-memory buffer, so searches see uncommitted documents at the cost of
// an overlay rebuild per open.
type BufferedWriter struct {
	inner *Writer

	maxDocs  int
	interval time.Duration

	mu       sync.Mutex
	buffered int
	timer    *time.Timer
	firstErr error
}

// NewBufferedWriter wraps w. maxDocs <= 0 disables the size trigger;
// interval <= 0 disables the time trigger.
func NewBufferedWriter(w *Writer, maxDocs int, interval time.Duration) *BufferedWriter {
	return &BufferedWriter{inner: w, maxDocs: maxDocs, interval: interval}
}

func (b *BufferedWriter) AddDocument(fields map[string]docvalue.Value) error {
	if err := b.inner.AddDocument(fields); err != nil {
		return err
	}
	return b.bumped()
}

func (b *BufferedWriter) UpdateDocument(fields map[string]docvalue.Value) error {
	if err := b.inner.UpdateDocument(fields); err != nil {
		return err
	}
	return b.bumped()
}

// bumped records one more buffered doc and fires a commit when the size
// window trips; the first buffered doc arms the time window.
func (b *BufferedWriter) bumped() error {
	b.mu.Lock()
	b.buffered++
	shouldCommit := b.maxDocs > 0 && b.buffered >= b.maxDocs
	if !shouldCommit && b.interval > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.timedCommit)
	}
	b.mu.Unlock()
	if shouldCommit {
		return b.Commit()
	}
	return nil
}

func (b *BufferedWriter) timedCommit() {
	if err := b.Commit(); err != nil {
		b.mu.Lock()
		if b.firstErr == nil {
			b.firstErr = err
		}
		b.mu.Unlock()
	}
}

// Commit flushes the window immediately. A background commit failure
// since the last call is surfaced here.
func (b *BufferedWriter) Commit() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.buffered = 0
	err := b.firstErr
	b.firstErr = nil
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.inner.Commit()
}

// Reader opens the committed snapshot plus, when documents are buffered,
// an in-memory overlay segment holding them. The overlay is a point-in-
// time copy; later adds are not reflected in an open snapshot.
func (b *BufferedWriter) Reader() (*Snapshot, error) {
	snap, err := OpenSnapshot(b.inner.dir, b.inner.sch)
	if err != nil {
		return nil, err
	}
	b.inner.mu.Lock()
	defer b.inner.mu.Unlock()
	if !b.inner.seg.HasDocs() {
		return snap, nil
	}

	overlay := directory.NewMemDirectory()
	const overlayID = "buffer"
	if _, err := b.inner.seg.WriteTo(overlay, overlayID, snap.Generation+1); err != nil {
		return nil, multierr.Append(err, snap.Close())
	}
	r, err := segment.Open(overlay, overlayID, b.inner.sch)
	if err != nil {
		return nil, multierr.Append(err, snap.Close())
	}
	snap.Segments = append(snap.Segments, r)
	snap.Entries = append(snap.Entries, SegmentEntry{ID: overlayID, Generation: snap.Generation + 1, DocCount: r.DocCountAll()})
	return snap, nil
}

// Close stops the timer and commits any remainder before closing the
// underlying writer.
func (b *BufferedWriter) Close() error {
	err := b.Commit()
	return multierr.Append(err, b.inner.Close())
}
