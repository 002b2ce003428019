// Package index composes segments into one logical index: it owns the
// table of contents, snapshot-consistent readers over the live segment
// set, and the committing writer that serializes all mutation behind the
// directory's advisory lock.
package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/qerrors"
	"github.com/quillsearch/quill/internal/schema"
)

const (
	tocPrefix = "TOC."
	tmpSuffix = ".tmp"
	// LockFile is the advisory write-lock file name in the index root.
	LockFile = "write.lock"
)

// SegmentEntry identifies one live segment in a table of contents.
type SegmentEntry struct {
	ID         string `json:"id"`
	Generation uint64 `json:"generation"`
	DocCount   int    `json:"doc_count"`
}

// TOC is the table of contents: the live segment list at one generation,
// plus the schema the segments were written against. Publishing a new
// TOC by atomic rename is the commit's linearization point.
type TOC struct {
	Generation uint64             `json:"generation"`
	Fields     []schema.FieldKind `json:"fields"`
	Segments   []SegmentEntry     `json:"segments"`
}

// Schema reconstructs the schema recorded in the TOC.
func (t *TOC) Schema() *schema.Schema {
	s := schema.New()
	for _, f := range t.Fields {
		s.AddField(f)
	}
	return s
}

func tocName(gen uint64) string {
	return fmt.Sprintf("%s%d", tocPrefix, gen)
}

func segmentID(gen uint64) string {
	return fmt.Sprintf("s%010d", gen)
}

// parseTOCGen extracts the generation from a TOC file name, rejecting
// temp files mid-write.
func parseTOCGen(name string) (uint64, bool) {
	if !strings.HasPrefix(name, tocPrefix) || strings.HasSuffix(name, tmpSuffix) {
		return 0, false
	}
	gen, err := strconv.ParseUint(name[len(tocPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// LatestTOC lists the directory and loads the highest-generation TOC.
// A directory with no TOC yet yields an empty generation-zero TOC.
func LatestTOC(dir directory.Directory) (*TOC, error) {
	names, err := dir.List()
	if err != nil {
		return nil, err
	}
	var best uint64
	found := false
	for _, name := range names {
		if gen, ok := parseTOCGen(name); ok && (!found || gen > best) {
			best = gen
			found = true
		}
	}
	if !found {
		return &TOC{}, nil
	}
	return readTOC(dir, tocName(best))
}

func readTOC(dir directory.Directory, name string) (*TOC, error) {
	r, err := dir.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := make([]byte, r.Size())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "read table of contents").WithFileName(name)
	}
	var t TOC
	if err := json.Unmarshal(buf, &t); err != nil {
		return nil, qerrors.Corrupt(err, "", name, "invalid table of contents")
	}
	return &t, nil
}

// writeTOC durably writes the TOC as a temp file and renames it into
// place. The rename is the only step that changes what readers see.
func writeTOC(dir directory.Directory, t *TOC) error {
	buf, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := tocName(t.Generation) + tmpSuffix
	f, err := dir.CreateFile(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return dir.Rename(tmp, tocName(t.Generation))
}
