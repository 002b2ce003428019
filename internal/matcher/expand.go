package matcher

import (
	"bytes"

	"github.com/quillsearch/quill/internal/segment"
)

// Expansion is the outcome of a dictionary scan: the concrete terms a
// multi-term query (prefix, wildcard, range, fuzzy) resolved to within
// one segment. Truncated reports that the scan hit the caller's limit
// before exhausting the candidates.
type Expansion struct {
	Terms     [][]byte
	Infos     []segment.TermInfo
	Truncated bool
}

func (e *Expansion) add(term []byte, ti segment.TermInfo) {
	e.Terms = append(e.Terms, append([]byte(nil), term...))
	e.Infos = append(e.Infos, ti)
}

// ExpandPrefix collects every term starting with prefix, up to limit
// terms (0 means unlimited).
func ExpandPrefix(dict segment.Dict, prefix []byte, limit int) (Expansion, error) {
	it, err := dict.Iterator(prefix, prefixSuccessor(prefix))
	if err != nil {
		return Expansion{}, err
	}
	var out Expansion
	for it.Active() {
		if limit > 0 && len(out.Terms) >= limit {
			out.Truncated = true
			break
		}
		out.add(it.Term(), it.TermInfo())
		if !it.Next() {
			break
		}
	}
	return out, nil
}

// ExpandRange collects terms in the [lo, hi] interval with the given
// bound inclusivity; either bound may be nil for an open side.
func ExpandRange(dict segment.Dict, lo, hi []byte, inclLo, inclHi bool, limit int) (Expansion, error) {
	it, err := dict.Iterator(lo, nil)
	if err != nil {
		return Expansion{}, err
	}
	var out Expansion
	for it.Active() {
		term := it.Term()
		if lo != nil && !inclLo && bytes.Equal(term, lo) {
			if !it.Next() {
				break
			}
			continue
		}
		if hi != nil {
			c := bytes.Compare(term, hi)
			if c > 0 || (c == 0 && !inclHi) {
				break
			}
		}
		if limit > 0 && len(out.Terms) >= limit {
			out.Truncated = true
			break
		}
		out.add(term, it.TermInfo())
		if !it.Next() {
			break
		}
	}
	return out, nil
}

// ExpandWildcard collects terms matching a glob pattern where '*' matches
// any run of bytes and '?' any single byte. The scan starts at the
// pattern's literal prefix and is bounded by that prefix's successor, so
// a pattern with a leading literal never walks the whole dictionary.
func ExpandWildcard(dict segment.Dict, pattern []byte, limit int) (Expansion, error) {
	prefix := literalPrefix(pattern)
	it, err := dict.Iterator(prefix, prefixSuccessor(prefix))
	if err != nil {
		return Expansion{}, err
	}
	var out Expansion
	for it.Active() {
		if limit > 0 && len(out.Terms) >= limit {
			out.Truncated = true
			break
		}
		if wildcardMatch(pattern, it.Term()) {
			out.add(it.Term(), it.TermInfo())
		}
		if !it.Next() {
			break
		}
	}
	return out, nil
}

// ExpandTermSet resolves an externally computed term set (the fuzzy case:
// a Levenshtein automaton's output) against the dictionary, keeping only
// terms that exist in this segment.
func ExpandTermSet(dict segment.Dict, terms [][]byte) Expansion {
	var out Expansion
	for _, t := range terms {
		if ti, ok := dict.Get(t); ok {
			out.add(t, ti)
		}
	}
	return out
}

// literalPrefix returns the bytes of pattern before the first wildcard
// metacharacter.
func literalPrefix(pattern []byte) []byte {
	for i, b := range pattern {
		if b == '*' || b == '?' {
			return pattern[:i]
		}
	}
	return pattern
}

// prefixSuccessor computes the smallest byte string greater than every
// string with the given prefix, or nil if no such bound exists (prefix is
// empty or all 0xff).
func prefixSuccessor(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// wildcardMatch reports whether term matches pattern ('*' any run, '?'
// any single byte), iteratively with backtracking over the last '*'.
func wildcardMatch(pattern, term []byte) bool {
	pi, ti := 0, 0
	star, starTi := -1, 0
	for ti < len(term) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == term[ti]):
			pi++
			ti++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			starTi = ti
			pi++
		case star >= 0:
			pi = star + 1
			starTi++
			ti = starTi
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
