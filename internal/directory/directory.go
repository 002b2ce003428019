// Package directory implements the storage abstraction the index is
// built on: named append-only files with atomic rename, directory
// listing, and an advisory lock, behind a common interface so segment
// and TOC code never touches os.File directly.
package directory

import (
	"io"

	"github.com/quillsearch/quill/internal/qerrors"
)

// Writer is an append-only sink for one named file. Close must be called
// to append the checksum trailer, fsync and finalize the file before
// OpenFile accepts it. MemDirectory lists the file only after Close;
// FSDirectory lists it from CreateFile on.
type Writer interface {
	io.Writer
	// Sync flushes buffered writes durably to the backing medium.
	Sync() error
	io.Closer
}

// Reader is a bounded, seekable view over one named file (or a Slice of a
// larger physical container). All reads are relative to the view's own
// origin; callers cannot read past Size().
type Reader interface {
	// ReadAt reads len(p) bytes starting at absolute offset off within
	// this view.
	ReadAt(p []byte, off int64) (int, error)
	// Size returns the number of bytes in this view.
	Size() int64
	// Slice returns a bounded sub-view [off, off+n) of this reader,
	// letting many logical files be packed into one physical container
	// after a commit.
	Slice(off, n int64) Reader
	io.Closer
}

// Lock represents a held advisory lock on the index directory, released by
// Close.
type Lock interface {
	io.Closer
}

// Directory is the storage abstraction every segment and TOC reader/writer
// is built against. Two implementations are provided: FSDirectory (durable,
// fsync'd, mmap-able) and MemDirectory (in-memory, for tests).
type Directory interface {
	// CreateFile opens name for exclusive, truncating write.
	CreateFile(name string) (Writer, error)
	// OpenFile opens name for reading. Returns a NotFoundError if absent.
	OpenFile(name string) (Reader, error)
	// List returns the names of all files currently present.
	List() ([]string, error)
	// Delete removes name. Missing files are not an error; orphan
	// cleanup after a commit is best-effort.
	Delete(name string) error
	// Rename atomically replaces to with from's contents; from must
	// exist and to may or may not. This is the sole atomicity primitive
	// the TOC commit protocol requires.
	Rename(from, to string) error
	// Lock acquires the index's advisory write lock. If the lock is
	// already held, it returns a LockedError immediately (non-blocking);
	// callers implement backoff and timeouts themselves.
	Lock(name string) (Lock, error)
}

func notFound(name string) error {
	return qerrors.NotFound("file " + name)
}
