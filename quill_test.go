package quill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/directory"
)

func testSchema() *Schema {
	s := NewSchema()
	s.AddField(UniqueIDField("id"))
	s.AddField(TextField("text"))
	return s
}

func TestUpdateByUniqueFieldEndToEnd(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema())
	require.NoError(t, err)
	w, err := ix.Writer()
	require.NoError(t, err)

	require.NoError(t, w.AddDocument(NewDocument().Text("id", "A").Text("text", "x")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.UpdateDocument(NewDocument().Text("id", "A").Text("text", "y")))
	require.NoError(t, w.Commit())

	s, err := ix.Searcher()
	require.NoError(t, err)
	defer s.Close()

	hits, err := s.Search(TermQuery("text", "y"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	stored, err := s.StoredFields(hits[0])
	require.NoError(t, err)
	require.Equal(t, "A", stored["id"].Str)

	hits, err = s.Search(TermQuery("text", "x"), 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFilesystemIndexRoundTrip(t *testing.T) {
	path := t.TempDir()
	sch := testSchema()

	ix, err := Open(path, sch)
	require.NoError(t, err)
	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(NewDocument().Text("id", "1").Text("text", "durable bits")))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	// A separate handle, schema recovered from the index itself.
	ix2, err := Open(path, nil)
	require.NoError(t, err)
	s, err := ix2.Searcher()
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, 1, s.DocCount())
	hits, err := s.Search(TermQuery("text", "durable"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestMMapOpenOption(t *testing.T) {
	path := t.TempDir()
	ix, err := Open(path, testSchema())
	require.NoError(t, err)
	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(NewDocument().Text("id", "1").Text("text", "paged")))
	require.NoError(t, w.Commit())

	ix2, err := Open(path, nil, WithMMap(), ReadOnly())
	require.NoError(t, err)
	s, err := ix2.Searcher()
	require.NoError(t, err)
	defer s.Close()
	hits, err := s.Search(TermQuery("text", "paged"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestReadOnlyIndexRefusesWriter(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema(), ReadOnly())
	require.NoError(t, err)
	_, err = ix.Writer()
	require.Error(t, err)
}

func TestBufferedWriterUnionsUncommitted(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema())
	require.NoError(t, err)

	bw, err := ix.BufferedWriter(100, time.Hour)
	require.NoError(t, err)
	defer bw.Close()

	require.NoError(t, bw.AddDocument(NewDocument().Text("id", "1").Text("text", "committed doc")))
	require.NoError(t, bw.Commit())
	require.NoError(t, bw.AddDocument(NewDocument().Text("id", "2").Text("text", "buffered doc")))

	// A plain searcher sees only the committed generation.
	plain, err := ix.Searcher()
	require.NoError(t, err)
	defer plain.Close()
	require.Equal(t, 1, plain.DocCount())

	// The buffered writer's own searcher unions in the buffer.
	union, err := bw.Searcher()
	require.NoError(t, err)
	defer union.Close()
	hits, err := union.Search(TermQuery("text", "doc"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestBufferedWriterSizeWindowCommits(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema())
	require.NoError(t, err)
	bw, err := ix.BufferedWriter(2, 0)
	require.NoError(t, err)
	defer bw.Close()

	require.NoError(t, bw.AddDocument(NewDocument().Text("id", "1").Text("text", "one")))
	require.NoError(t, bw.AddDocument(NewDocument().Text("id", "2").Text("text", "two")))

	s, err := ix.Searcher()
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, 2, s.DocCount())
}

func TestSortByStoredField(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema())
	require.NoError(t, err)
	w, err := ix.Writer()
	require.NoError(t, err)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, w.AddDocument(NewDocument().Text("id", id).Text("text", "same words here")))
	}
	require.NoError(t, w.Commit())

	s, err := ix.Searcher()
	require.NoError(t, err)
	defer s.Close()

	hits, err := s.Search(TermQuery("text", "words"), 10, s.SortByField("id", false))
	require.NoError(t, err)
	require.Len(t, hits, 3)
	var ids []string
	for _, h := range hits {
		doc, err := s.StoredFields(h)
		require.NoError(t, err)
		ids = append(ids, doc["id"].Str)
	}
	require.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)
}

func TestTimeLimitSurfacesPartialResults(t *testing.T) {
	ix, err := OpenIn(directory.NewMemDirectory(), testSchema())
	require.NoError(t, err)
	w, err := ix.Writer()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, w.AddDocument(NewDocument().Text("id", string(rune('a'+i%26))+string(rune('a'+i/26))).Text("text", "needle")))
	}
	require.NoError(t, w.Commit())

	s, err := ix.Searcher()
	require.NoError(t, err)
	defer s.Close()

	hits, err := s.Search(TermQuery("text", "needle"), 10,
		WithTimeLimit(time.Now().Add(-time.Second), 1))
	require.Error(t, err)
	require.True(t, IsTimeLimit(err))
	require.NotEmpty(t, hits)
}
