package index

import (
	"sort"

	"go.uber.org/multierr"

	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/segment"
)

// Snapshot is a pinned, immutable view of the index at one generation:
// the segment readers bound to their files at open time, in the stable
// (generation, id) traversal order every search uses. Concurrent commits
// never affect an open Snapshot; reopen to observe them.
type Snapshot struct {
	Generation uint64
	Schema     *schema.Schema
	Segments   []*segment.Reader
	Entries    []SegmentEntry
}

// OpenSnapshot loads the latest TOC and opens every live segment. When
// sch is non-nil it must be compatible with the schema the index was
// written with (it may extend it); nil adopts the recorded schema.
func OpenSnapshot(dir directory.Directory, sch *schema.Schema) (*Snapshot, error) {
	toc, err := LatestTOC(dir)
	if err != nil {
		return nil, err
	}
	return openSnapshotAt(dir, sch, toc)
}

func openSnapshotAt(dir directory.Directory, sch *schema.Schema, toc *TOC) (*Snapshot, error) {
	recorded := toc.Schema()
	effective := sch
	if effective == nil {
		effective = recorded
	} else if len(toc.Fields) > 0 && !recorded.CompatibleWith(effective) {
		return nil, qerrors.SchemaMismatch("", "index schema is incompatible with the requested schema")
	}

	entries := append([]SegmentEntry(nil), toc.Segments...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Generation != entries[j].Generation {
			return entries[i].Generation < entries[j].Generation
		}
		return entries[i].ID < entries[j].ID
	})

	snap := &Snapshot{Generation: toc.Generation, Schema: effective, Entries: entries}
	for _, e := range entries {
		r, err := segment.Open(dir, e.ID, effective)
		if err != nil {
			_ = snap.Close()
			return nil, err
		}
		snap.Segments = append(snap.Segments, r)
	}
	return snap, nil
}

// DocCount returns the number of live documents across all segments.
func (s *Snapshot) DocCount() int {
	var n int
	for _, r := range s.Segments {
		n += r.DocCount()
	}
	return n
}

func (s *Snapshot) Close() error {
	var err error
	for _, r := range s.Segments {
		err = multierr.Append(err, r.Close())
	}
	return err
}
