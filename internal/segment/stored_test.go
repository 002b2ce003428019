package segment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/docvalue"
)

func TestStoredRoundTrip(t *testing.T) {
	doc := StoredDoc{
		"title": docvalue.FromString("moby dick"),
		"year":  docvalue.FromInt64(1851),
		"tags":  docvalue.FromList([]docvalue.Value{docvalue.FromString("whale"), docvalue.FromString("sea")}),
	}
	buf := EncodeStored(nil, doc)
	got, n, err := DecodeStored(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, len(doc), len(got))
	for k, v := range doc {
		require.Equal(t, v.Kind, got[k].Kind)
	}
}

func TestStoredStoreGet(t *testing.T) {
	docs := []StoredDoc{
		{"a": docvalue.FromInt64(1)},
		{"a": docvalue.FromInt64(2)},
		{"a": docvalue.FromInt64(3)},
	}
	var buf []byte
	for _, d := range docs {
		buf = EncodeStored(buf, d)
	}
	store, err := LoadStoredStore(buf, len(docs))
	require.NoError(t, err)

	for i, want := range docs {
		got, err := store.Get(uint32(i))
		require.NoError(t, err)
		require.Equal(t, want["a"].Int, got["a"].Int)
	}

	_, err = store.Get(uint32(len(docs)))
	require.Error(t, err)
}

func TestLoadStoredStoreRejectsMismatchedCount(t *testing.T) {
	buf := EncodeStored(nil, StoredDoc{"a": docvalue.FromBool(true)})
	_, err := LoadStoredStore(buf, 2)
	require.Error(t, err)
}
