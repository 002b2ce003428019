package searcher

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/collector"
	"github.com/quillsearch/quill/internal/directory"
	"github.com/quillsearch/quill/internal/docvalue"
	"github.com/quillsearch/quill/internal/index"
	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/internal/schema"
)

func textSchema() *schema.Schema {
	s := schema.New()
	s.AddField(schema.TextField("text"))
	return s
}

// buildIndex commits texts as one segment and returns a searcher over
// the resulting snapshot.
func buildIndex(t *testing.T, sch *schema.Schema, docs []map[string]docvalue.Value) *Searcher {
	t.Helper()
	dir := directory.NewMemDirectory()
	w := index.NewWriter(dir, sch, index.Options{})
	for _, d := range docs {
		require.NoError(t, w.AddDocument(d))
	}
	require.NoError(t, w.Commit())
	snap, err := index.OpenSnapshot(dir, sch)
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })
	return New(snap, Options{})
}

func textDocs(texts ...string) []map[string]docvalue.Value {
	out := make([]map[string]docvalue.Value, len(texts))
	for i, text := range texts {
		out[i] = map[string]docvalue.Value{"text": docvalue.FromString(text)}
	}
	return out
}

func docIDs(hits []collector.Hit) []uint32 {
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestPhraseQuery(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs(
		"the quick brown fox",
		"brown fox quick",
		"the quick fox",
	))
	hits, err := s.Search(query.NewPhrase("text", "quick", "fox"), 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, docIDs(hits))
}

func TestWildcardVsPhrase(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs(
		"the quick brown fox",
		"brown fox quick",
		"the quick fox",
	))
	hits, err := s.Search(query.Wildcard{Field: "text", Pattern: []byte("qu*k")}, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, docIDs(hits))

	s2 := buildIndex(t, textSchema(), textDocs("my so called life"))
	hits, err = s2.Search(query.NewPhrase("text", "my*life"), 10)
	require.NoError(t, err)
	require.Empty(t, hits, "wildcard syntax is not interpreted inside a phrase")
}

func TestRangeQuery(t *testing.T) {
	sch := schema.New()
	sch.AddField(schema.IDField("date"))
	docs := []map[string]docvalue.Value{
		{"date": docvalue.FromString("20050101")},
		{"date": docvalue.FromString("20090715")},
		{"date": docvalue.FromString("20091231")},
	}
	s := buildIndex(t, sch, docs)
	hits, err := s.Search(query.Range{
		Field:  "date",
		Lo:     []byte("20050101"),
		Hi:     []byte("20090715"),
		InclLo: true,
		InclHi: true,
	}, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, docIDs(hits))

	// Exclusive bounds shave both ends.
	hits, err = s.Search(query.Range{
		Field: "date",
		Lo:    []byte("20050101"),
		Hi:    []byte("20091231"),
	}, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, docIDs(hits))
}

func TestBooleanAndNot(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs(
		"alpha beta",
		"alpha gamma",
		"alpha",
	))
	q := query.AndNot{
		Include: query.NewTerm("text", "alpha"),
		Exclude: query.Or{Children: []query.Query{
			query.NewTerm("text", "beta"),
			query.NewTerm("text", "gamma"),
		}},
	}
	hits, err := s.Search(q, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, docIDs(hits))
}

func TestConjunctionAndPrefix(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs(
		"red apple pie",
		"red apple",
		"green apple",
	))
	hits, err := s.Search(query.And{Children: []query.Query{
		query.NewTerm("text", "red"),
		query.NewTerm("text", "apple"),
	}}, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, docIDs(hits))

	hits, err = s.Search(query.Prefix{Field: "text", Prefix: []byte("app")}, 10)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, docIDs(hits))
}

func TestEveryAndBoost(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs("a", "b", "c"))
	hits, err := s.Search(query.Every{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Boost scales scores without changing the match set.
	plain, err := s.Search(query.NewTerm("text", "a"), 10)
	require.NoError(t, err)
	boosted, err := s.Search(query.Boost{Child: query.NewTerm("text", "a"), Factor: 2}, 10)
	require.NoError(t, err)
	require.Len(t, boosted, 1)
	require.InDelta(t, plain[0].Score*2, boosted[0].Score, 1e-9)

	constant, err := s.Search(query.Constant{Child: query.NewTerm("text", "a"), Score: 7}, 10)
	require.NoError(t, err)
	require.Equal(t, 7.0, constant[0].Score)
}

func TestScoresPreferShorterFields(t *testing.T) {
	s := buildIndex(t, textSchema(), textDocs(
		"whale",
		"whale whale whale ocean current tide",
		"ocean",
	))
	hits, err := s.Search(query.NewTerm("text", "whale"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// The one-word doc's length normalization outweighs the other doc's
	// higher term frequency.
	require.Equal(t, uint32(0), hits[0].DocID)
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMultiSegmentSearchAndStoredFields(t *testing.T) {
	sch := schema.New()
	sch.AddField(schema.TextField("text"))
	sch.AddField(schema.IDField("id"))

	dir := directory.NewMemDirectory()
	w := index.NewWriter(dir, sch, index.Options{MergeMinSegments: 100})
	for _, batch := range [][2]string{{"a", "shared first"}, {"b", "shared second"}} {
		require.NoError(t, w.AddDocument(map[string]docvalue.Value{
			"id":   docvalue.FromString(batch[0]),
			"text": docvalue.FromString(batch[1]),
		}))
		require.NoError(t, w.Commit())
	}

	snap, err := index.OpenSnapshot(dir, sch)
	require.NoError(t, err)
	defer snap.Close()
	require.Len(t, snap.Segments, 2)

	s := New(snap, Options{})
	hits, err := s.Search(query.NewTerm("text", "shared"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	seen := map[string]bool{}
	for _, h := range hits {
		stored, err := s.StoredFields(h)
		require.NoError(t, err)
		seen[stored["id"].Str] = true
	}
	require.True(t, seen["a"] && seen["b"])
}

// With and without block-quality pruning the top-K must agree; the
// reference search asks for more hits than there are matching docs, so
// its heap never fills and it never prunes.
func TestTopKMatchesExhaustiveScan(t *testing.T) {
	texts := make([]string, 0, 200)
	words := []string{"alpha", "beta", "gamma", "delta"}
	for i := 0; i < 200; i++ {
		text := ""
		for j, word := range words {
			if i%(j+2) == 0 {
				for k := 0; k <= i%3; k++ {
					text += word + " "
				}
			}
		}
		if text == "" {
			text = "filler"
		}
		texts = append(texts, text)
	}
	s := buildIndex(t, textSchema(), textDocs(texts...))

	q := query.Or{Children: []query.Query{
		query.NewTerm("text", "alpha"),
		query.NewTerm("text", "beta"),
		query.NewTerm("text", "gamma"),
	}}
	top, err := s.Search(q, 10)
	require.NoError(t, err)
	all, err := s.Search(q, 200)
	require.NoError(t, err)
	require.Equal(t, all[:10], top)
}
