package quill

import "github.com/quillsearch/quill/internal/query"

// Query constructors. Each returns a node of the tagged query tree the
// searcher evaluates; trees compose freely.

// TermQuery matches documents containing the exact term in field.
func TermQuery(field, term string) Query {
	return query.NewTerm(field, term)
}

// TermBytesQuery matches an exact binary term, as produced for numeric
// fields.
func TermBytesQuery(field string, term []byte) Query {
	return query.Term{Field: field, Term: term}
}

// PhraseQuery matches terms at consecutive positions in field.
func PhraseQuery(field string, terms ...string) Query {
	return query.NewPhrase(field, terms...)
}

// SloppyPhraseQuery allows each word to drift up to slop positions past
// its exact place.
func SloppyPhraseQuery(field string, slop int, terms ...string) Query {
	p := query.NewPhrase(field, terms...)
	p.Slop = slop
	return p
}

// AndQuery matches documents matched by every child.
func AndQuery(children ...Query) Query {
	return query.And{Children: children}
}

// OrQuery matches documents matched by at least one child.
func OrQuery(children ...Query) Query {
	return query.Or{Children: children}
}

// AndNotQuery matches documents matched by include but not exclude.
func AndNotQuery(include, exclude Query) Query {
	return query.AndNot{Include: include, Exclude: exclude}
}

// RangeQuery matches any term in the [lo, hi] byte interval of field.
// Empty bounds leave that side open.
func RangeQuery(field, lo, hi string, inclLo, inclHi bool) Query {
	q := query.Range{Field: field, InclLo: inclLo, InclHi: inclHi}
	if lo != "" {
		q.Lo = []byte(lo)
	}
	if hi != "" {
		q.Hi = []byte(hi)
	}
	return q
}

// PrefixQuery matches any term starting with prefix in field.
func PrefixQuery(field, prefix string) Query {
	return query.Prefix{Field: field, Prefix: []byte(prefix)}
}

// WildcardQuery matches any term matching pattern, where '*' matches any
// run of bytes and '?' a single byte.
func WildcardQuery(field, pattern string) Query {
	return query.Wildcard{Field: field, Pattern: []byte(pattern)}
}

// FuzzyQuery matches any of an externally computed term set, typically a
// Levenshtein automaton's output.
func FuzzyQuery(field string, terms ...string) Query {
	q := query.Fuzzy{Field: field}
	for _, t := range terms {
		q.Terms = append(q.Terms, []byte(t))
	}
	return q
}

// EveryQuery matches all live documents; with a field, all documents
// carrying at least one term in that field.
func EveryQuery(field string) Query {
	return query.Every{Field: field}
}

// BoostQuery multiplies the child's scores by factor.
func BoostQuery(child Query, factor float64) Query {
	return query.Boost{Child: child, Factor: factor}
}

// ConstantQuery scores every hit of child with the fixed score.
func ConstantQuery(child Query, score float64) Query {
	return query.Constant{Child: child, Score: score}
}
