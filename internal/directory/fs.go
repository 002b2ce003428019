package directory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	mmap "github.com/blevesearch/mmap-go"
	"github.com/cespare/xxhash/v2"

	"github.com/quillsearch/quill/internal/qerrors"
)

// FSDirectory is an os.File-backed Directory. Every Writer.Close computes
// an xxhash.Sum64 digest over the written bytes and appends it as an
// 8-byte trailer; Reader verifies it on open, surfacing a CorruptError on
// mismatch.
type FSDirectory struct {
	path string
	mmap bool

	mu    sync.Mutex
	lockF *os.File
}

// NewFSDirectory opens (creating if necessary) path as a durable segment
// store. When mmapReads is true, OpenFile-returned readers map the file
// via mmap-go and serve reads from the mapping; otherwise they issue
// positioned reads (ReadAt) on the open file.
func NewFSDirectory(path string, mmapReads bool) (*FSDirectory, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "create index directory").WithPath(path)
	}
	return &FSDirectory{path: path, mmap: mmapReads}, nil
}

func (d *FSDirectory) abs(name string) string { return filepath.Join(d.path, name) }

type fsWriter struct {
	f *os.File
	h *xxhash.Digest
}

func (w *fsWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if n > 0 {
		_, _ = w.h.Write(p[:n])
	}
	return n, err
}

func (w *fsWriter) Sync() error { return w.f.Sync() }

func (w *fsWriter) Close() error {
	var trailer [8]byte
	sum := w.h.Sum64()
	for i := 0; i < 8; i++ {
		trailer[i] = byte(sum >> (8 * i))
	}
	if _, err := w.f.Write(trailer[:]); err != nil {
		_ = w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

func (d *FSDirectory) CreateFile(name string) (Writer, error) {
	f, err := os.OpenFile(d.abs(name), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "create file").WithPath(d.path).WithFileName(name)
	}
	return &fsWriter{f: f, h: xxhash.New()}, nil
}

type fsReader struct {
	f      *os.File
	mm     mmap.MMap
	base   int64
	size   int64
	closer func() error
}

func (r *fsReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > r.size {
		return 0, io.ErrUnexpectedEOF
	}
	if r.mm != nil {
		n := copy(p, r.mm[r.base+off:r.base+off+int64(len(p))])
		return n, nil
	}
	return r.f.ReadAt(p, r.base+off)
}

func (r *fsReader) Size() int64 { return r.size }

func (r *fsReader) Slice(off, n int64) Reader {
	return &fsReader{f: r.f, mm: r.mm, base: r.base + off, size: n, closer: func() error { return nil }}
}

func (r *fsReader) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

func (d *FSDirectory) OpenFile(name string) (Reader, error) {
	f, err := os.Open(d.abs(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(name)
		}
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "open file").WithPath(d.path).WithFileName(name)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "stat file").WithFileName(name)
	}
	size := fi.Size()
	if size < 8 {
		_ = f.Close()
		return nil, qerrors.Corrupt(nil, "", name, "file shorter than checksum trailer")
	}
	payloadSize := size - 8

	if err := verifyChecksum(f, payloadSize, name); err != nil {
		_ = f.Close()
		return nil, err
	}

	if d.mmap {
		mm, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			_ = f.Close()
			return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "mmap file").WithFileName(name)
		}
		return &fsReader{f: f, mm: mm, size: payloadSize, closer: func() error {
			err := mm.Unmap()
			_ = f.Close()
			return err
		}}, nil
	}

	return &fsReader{f: f, size: payloadSize, closer: f.Close}, nil
}

func verifyChecksum(f *os.File, payloadSize int64, name string) error {
	h := xxhash.New()
	buf := make([]byte, 64*1024)
	var read int64
	for read < payloadSize {
		n := int64(len(buf))
		if payloadSize-read < n {
			n = payloadSize - read
		}
		got, err := f.ReadAt(buf[:n], read)
		if got > 0 {
			_, _ = h.Write(buf[:got])
		}
		if err != nil && err != io.EOF {
			return qerrors.NewStorageError(err, qerrors.KindInternal, "read for checksum").WithFileName(name)
		}
		read += int64(got)
		if got == 0 {
			break
		}
	}
	var trailer [8]byte
	if _, err := f.ReadAt(trailer[:], payloadSize); err != nil {
		return qerrors.NewStorageError(err, qerrors.KindInternal, "read checksum trailer").WithFileName(name)
	}
	var want uint64
	for i := 0; i < 8; i++ {
		want |= uint64(trailer[i]) << (8 * i)
	}
	if h.Sum64() != want {
		return qerrors.Corrupt(nil, "", name, fmt.Sprintf("checksum mismatch: got %x want %x", h.Sum64(), want))
	}
	return nil
}

func (d *FSDirectory) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "list directory").WithPath(d.path)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (d *FSDirectory) Delete(name string) error {
	err := os.Remove(d.abs(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return qerrors.NewStorageError(err, qerrors.KindInternal, "delete file").WithFileName(name)
	}
	return nil
}

func (d *FSDirectory) Rename(from, to string) error {
	if err := os.Rename(d.abs(from), d.abs(to)); err != nil {
		return qerrors.NewStorageError(err, qerrors.KindInternal, "rename file").WithDetail("from", from).WithDetail("to", to)
	}
	dirF, err := os.Open(d.path)
	if err != nil {
		return nil // best-effort directory-entry fsync
	}
	defer dirF.Close()
	_ = dirF.Sync()
	return nil
}

type fsLock struct{ f *os.File }

func (l *fsLock) Close() error {
	err := unlockFile(l.f)
	closeErr := l.f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func (d *FSDirectory) Lock(name string) (Lock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.OpenFile(d.abs(name), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, qerrors.NewStorageError(err, qerrors.KindInternal, "open lock file").WithFileName(name)
	}
	if err := lockFileExclusive(f); err != nil {
		_ = f.Close()
		return nil, qerrors.Locked(d.abs(name))
	}
	return &fsLock{f: f}, nil
}
