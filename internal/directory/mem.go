package directory

import (
	"bytes"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/quillsearch/quill/internal/qerrors"
)

// MemDirectory is an in-memory Directory, used by tests so segment and
// index logic can run without touching the filesystem.
type MemDirectory struct {
	mu    sync.RWMutex
	files map[string][]byte
	locks map[string]bool
}

func NewMemDirectory() *MemDirectory {
	return &MemDirectory{files: make(map[string][]byte), locks: make(map[string]bool)}
}

type memWriter struct {
	dir  *MemDirectory
	name string
	buf  bytes.Buffer
	h    *xxhash.Digest
}

func (w *memWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if n > 0 {
		_, _ = w.h.Write(p[:n])
	}
	return n, err
}

func (w *memWriter) Sync() error { return nil }

func (w *memWriter) Close() error {
	sum := w.h.Sum64()
	var trailer [8]byte
	for i := 0; i < 8; i++ {
		trailer[i] = byte(sum >> (8 * i))
	}
	w.buf.Write(trailer[:])
	w.dir.mu.Lock()
	w.dir.files[w.name] = append([]byte(nil), w.buf.Bytes()...)
	w.dir.mu.Unlock()
	return nil
}

func (d *MemDirectory) CreateFile(name string) (Writer, error) {
	return &memWriter{dir: d, name: name, h: xxhash.New()}, nil
}

type memReader struct {
	data []byte
	base int64
	size int64
}

func (r *memReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > r.size {
		return 0, bytes.ErrTooLarge
	}
	n := copy(p, r.data[r.base+off:r.base+off+int64(len(p))])
	return n, nil
}

func (r *memReader) Size() int64 { return r.size }

func (r *memReader) Slice(off, n int64) Reader {
	return &memReader{data: r.data, base: r.base + off, size: n}
}

func (r *memReader) Close() error { return nil }

func (d *MemDirectory) OpenFile(name string) (Reader, error) {
	d.mu.RLock()
	data, ok := d.files[name]
	d.mu.RUnlock()
	if !ok {
		return nil, notFound(name)
	}
	if len(data) < 8 {
		return nil, qerrors.Corrupt(nil, "", name, "file shorter than checksum trailer")
	}
	payload := data[:len(data)-8]
	trailer := data[len(data)-8:]
	h := xxhash.New()
	_, _ = h.Write(payload)
	var want uint64
	for i := 0; i < 8; i++ {
		want |= uint64(trailer[i]) << (8 * i)
	}
	if h.Sum64() != want {
		return nil, qerrors.Corrupt(nil, "", name, "checksum mismatch")
	}
	return &memReader{data: payload, size: int64(len(payload))}, nil
}

func (d *MemDirectory) List() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.files))
	for n := range d.files {
		out = append(out, n)
	}
	return out, nil
}

func (d *MemDirectory) Delete(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, name)
	return nil
}

func (d *MemDirectory) Rename(from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[from]
	if !ok {
		return notFound(from)
	}
	d.files[to] = data
	delete(d.files, from)
	return nil
}

type memLock struct {
	dir  *MemDirectory
	name string
}

func (l *memLock) Close() error {
	l.dir.mu.Lock()
	delete(l.dir.locks, l.name)
	l.dir.mu.Unlock()
	return nil
}

func (d *MemDirectory) Lock(name string) (Lock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locks[name] {
		return nil, qerrors.Locked(name)
	}
	d.locks[name] = true
	return &memLock{dir: d, name: name}, nil
}
