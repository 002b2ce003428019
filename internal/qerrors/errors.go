package qerrors

import (
	stdErrors "errors"
	"fmt"
)

// NotFoundError reports a missing term, document, segment, or field.
// Never retried by the caller.
type NotFoundError struct {
	*baseError
	what string
}

func NotFound(what string) *NotFoundError {
	return &NotFoundError{baseError: newBase(nil, KindNotFound, fmt.Sprintf("%s not found", what)), what: what}
}

func (e *NotFoundError) What() string { return e.what }

// LockedError reports that the index write lock is held by another writer.
// Callers may retry with backoff.
type LockedError struct {
	*baseError
	path string
}

func Locked(path string) *LockedError {
	return &LockedError{baseError: newBase(nil, KindLocked, "index write lock held"), path: path}
}

func (e *LockedError) Path() string { return e.path }

// ReadOnlyError reports a mutation attempted on a read-only index or
// through a writer that has been closed.
type ReadOnlyError struct {
	*baseError
}

func ReadOnly(msg string) *ReadOnlyError {
	return &ReadOnlyError{baseError: newBase(nil, KindReadOnly, msg)}
}

// CorruptError reports a checksum, length, or ordering invariant violated
// while reading a segment. Fatal for that segment.
type CorruptError struct {
	*baseError
	segment string
	file    string
}

func Corrupt(cause error, segment, file, msg string) *CorruptError {
	e := &CorruptError{baseError: newBase(cause, KindCorrupt, msg), segment: segment, file: file}
	e.withDetail("segment", segment)
	e.withDetail("file", file)
	return e
}

func (e *CorruptError) Segment() string { return e.segment }
func (e *CorruptError) File() string    { return e.file }

// SchemaMismatchError reports a field unknown to the schema, or an index
// opened with an incompatible schema fingerprint.
type SchemaMismatchError struct {
	*baseError
	field string
}

func SchemaMismatch(field, msg string) *SchemaMismatchError {
	e := &SchemaMismatchError{baseError: newBase(nil, KindSchemaMismatch, msg), field: field}
	e.withDetail("field", field)
	return e
}

func (e *SchemaMismatchError) Field() string { return e.field }

// TimeLimitError reports that the collector's soft deadline expired.
// It carries no results; the searcher returns the partial hits collected
// so far alongside it.
type TimeLimitError struct {
	*baseError
}

func TimeLimit() *TimeLimitError {
	return &TimeLimitError{baseError: newBase(nil, KindTimeLimit, "collector time limit exceeded")}
}

// IndexingError reports a document value inconsistent with its declared
// field kind; the pending commit that contains it is aborted.
type IndexingError struct {
	*baseError
	field string
}

func Indexing(field, msg string) *IndexingError {
	e := &IndexingError{baseError: newBase(nil, KindIndexing, msg), field: field}
	e.withDetail("field", field)
	return e
}

func (e *IndexingError) Field() string { return e.field }

// StorageError reports an I/O failure against a segment file: open, read,
// write, seek, sync, or rename.
type StorageError struct {
	*baseError
	path     string
	fileName string
	offset   int64
}

func NewStorageError(cause error, kind Kind, msg string) *StorageError {
	return &StorageError{baseError: newBase(cause, kind, msg)}
}

func (e *StorageError) WithPath(path string) *StorageError {
	e.path = path
	e.withDetail("path", path)
	return e
}

func (e *StorageError) WithFileName(name string) *StorageError {
	e.fileName = name
	e.withDetail("fileName", name)
	return e
}

func (e *StorageError) WithOffset(offset int64) *StorageError {
	e.offset = offset
	e.withDetail("offset", offset)
	return e
}

func (e *StorageError) WithDetail(key string, value any) *StorageError {
	e.withDetail(key, value)
	return e
}

func (e *StorageError) Path() string     { return e.path }
func (e *StorageError) FileName() string { return e.fileName }
func (e *StorageError) Offset() int64    { return e.offset }

// --- classification helpers, mirroring errors.Is/As usage patterns ---

func IsNotFound(err error) bool {
	var e *NotFoundError
	return stdErrors.As(err, &e)
}

func IsLocked(err error) bool {
	var e *LockedError
	return stdErrors.As(err, &e)
}

func IsCorrupt(err error) bool {
	var e *CorruptError
	return stdErrors.As(err, &e)
}

func IsTimeLimit(err error) bool {
	var e *TimeLimitError
	return stdErrors.As(err, &e)
}

func AsStorageError(err error) (*StorageError, bool) {
	var e *StorageError
	if stdErrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf extracts the Kind from any error in the chain that carries one,
// or KindInternal for anything else.
func KindOf(err error) Kind {
	var b interface{ Kind() Kind }
	if stdErrors.As(err, &b) {
		return b.Kind()
	}
	return KindInternal
}
