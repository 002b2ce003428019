package quill

import "github.com/quillsearch/quill/internal/docvalue"

// Document is the unit of indexing: field name to value. Values must be
// consistent with the schema's declared field kinds.
type Document map[string]docvalue.Value

// NewDocument returns an empty document; populate it with the chained
// setters.
func NewDocument() Document { return make(Document) }

// Text sets a string value, the kind tokenized and untokenized string
// fields index.
func (d Document) Text(field, value string) Document {
	d[field] = docvalue.FromString(value)
	return d
}

// Int sets an integer value for numeric fields.
func (d Document) Int(field string, value int64) Document {
	d[field] = docvalue.FromInt64(value)
	return d
}

// Float sets a floating-point value for numeric fields.
func (d Document) Float(field string, value float64) Document {
	d[field] = docvalue.FromFloat64(value)
	return d
}

// Bytes sets a raw byte-string value.
func (d Document) Bytes(field string, value []byte) Document {
	d[field] = docvalue.FromBytes(value)
	return d
}

// Bool sets a boolean value; stored only, never indexed.
func (d Document) Bool(field string, value bool) Document {
	d[field] = docvalue.FromBool(value)
	return d
}

// Set stores an arbitrary tagged value, covering lists and nested maps.
func (d Document) Set(field string, value docvalue.Value) Document {
	d[field] = value
	return d
}
