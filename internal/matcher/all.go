package matcher

import "github.com/RoaringBitmap/roaring"

// All matches every live document in a segment with a constant score,
// backing the match-all query and the include side of pure negations.
type All struct {
	docCount uint32
	deleted  *roaring.Bitmap
	cur      uint32
	active   bool
	score    float64
}

func NewAll(docCount int, deleted *roaring.Bitmap, score float64) *All {
	a := &All{docCount: uint32(docCount), deleted: deleted, score: score, active: docCount > 0}
	a.skipDeleted()
	return a
}

func (a *All) skipDeleted() {
	for a.active && a.deleted != nil && a.deleted.Contains(a.cur) {
		a.cur++
		if a.cur >= a.docCount {
			a.active = false
		}
	}
	if a.cur >= a.docCount {
		a.active = false
	}
}

func (a *All) IsActive() bool { return a.active }

func (a *All) ID() uint32 {
	if !a.active {
		return NoMoreDocs
	}
	return a.cur
}

func (a *All) Next() error {
	if !a.active {
		return nil
	}
	a.cur++
	if a.cur >= a.docCount {
		a.active = false
		return nil
	}
	a.skipDeleted()
	return nil
}

func (a *All) SkipTo(target uint32) error {
	if !a.active {
		return nil
	}
	if target > a.cur {
		a.cur = target
	}
	a.skipDeleted()
	return nil
}

func (a *All) Weight() float64 { return 1 }
func (a *All) Score() float64  { return a.score }

// Match-all has no per-block statistics to bound; every doc scores the
// same, so pruning below that constant would drop valid hits.
func (a *All) SupportsQuality() bool       { return false }
func (a *All) BlockQuality() float64       { return a.score }
func (a *All) SkipToQuality(float64) error { return nil }

func (a *All) Copy() Matcher {
	cp := *a
	return &cp
}
