package matcher

import "container/heap"

// childHeap orders active children by their current doc ID so the
// disjunction's current doc is always the heap minimum.
type childHeap []Matcher

func (h childHeap) Len() int            { return len(h) }
func (h childHeap) Less(i, j int) bool  { return h[i].ID() < h[j].ID() }
func (h childHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *childHeap) Push(x interface{}) { *h = append(*h, x.(Matcher)) }
func (h *childHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Disjunction unions its children through a min-heap keyed on ID. The
// current doc is the heap minimum; Score sums every child positioned on
// that doc. SkipToQuality skips any child whose own block quality cannot
// lift the union's bound above the threshold once the remaining
// children's maxima are accounted for, the classic WAND move.
type Disjunction struct {
	children childHeap // active children only
	inactive []Matcher // children that ran out, kept for Copy fidelity
}

// NewDisjunction builds a Disjunction over children; empty or exhausted
// children simply never contribute.
func NewDisjunction(children []Matcher) *Disjunction {
	d := &Disjunction{}
	for _, ch := range children {
		if ch.IsActive() {
			d.children = append(d.children, ch)
		} else {
			d.inactive = append(d.inactive, ch)
		}
	}
	heap.Init(&d.children)
	return d
}

func (d *Disjunction) IsActive() bool { return len(d.children) > 0 }

func (d *Disjunction) ID() uint32 {
	if len(d.children) == 0 {
		return NoMoreDocs
	}
	return d.children[0].ID()
}

// onCurrent invokes fn for every child positioned on the current doc.
func (d *Disjunction) onCurrent(fn func(Matcher)) {
	cur := d.ID()
	for _, ch := range d.children {
		if ch.ID() == cur {
			fn(ch)
		}
	}
}

// advanceMin pops every child sitting on the current doc, advances it,
// and pushes it back if still active.
func (d *Disjunction) advanceMin() error {
	cur := d.ID()
	for len(d.children) > 0 && d.children[0].ID() == cur {
		ch := heap.Pop(&d.children).(Matcher)
		if err := ch.Next(); err != nil {
			return err
		}
		if ch.IsActive() {
			heap.Push(&d.children, ch)
		} else {
			d.inactive = append(d.inactive, ch)
		}
	}
	return nil
}

func (d *Disjunction) Next() error {
	if !d.IsActive() {
		return nil
	}
	return d.advanceMin()
}

func (d *Disjunction) SkipTo(target uint32) error {
	for len(d.children) > 0 && d.children[0].ID() < target {
		ch := heap.Pop(&d.children).(Matcher)
		if err := ch.SkipTo(target); err != nil {
			return err
		}
		if ch.IsActive() {
			heap.Push(&d.children, ch)
		} else {
			d.inactive = append(d.inactive, ch)
		}
	}
	return nil
}

func (d *Disjunction) Weight() float64 {
	var sum float64
	d.onCurrent(func(ch Matcher) { sum += ch.Weight() })
	return sum
}

func (d *Disjunction) Score() float64 {
	var sum float64
	d.onCurrent(func(ch Matcher) { sum += ch.Score() })
	return sum
}

func (d *Disjunction) SupportsQuality() bool {
	for _, ch := range d.children {
		if !ch.SupportsQuality() {
			return false
		}
	}
	return len(d.children) > 0
}

func (d *Disjunction) BlockQuality() float64 {
	var sum float64
	for _, ch := range d.children {
		sum += ch.BlockQuality()
	}
	return sum
}

// SkipToQuality advances any child whose block bound is dominated: if the
// sum of every other child's block quality already falls short of min by
// more than this child can add, the child's current blocks cannot matter.
func (d *Disjunction) SkipToQuality(min float64) error {
	if !d.SupportsQuality() {
		return nil
	}
	total := d.BlockQuality()
	for i := 0; i < len(d.children); i++ {
		ch := d.children[i]
		others := total - ch.BlockQuality()
		if err := ch.SkipToQuality(min - others); err != nil {
			return err
		}
		if !ch.IsActive() {
			d.inactive = append(d.inactive, ch)
			d.children = append(d.children[:i], d.children[i+1:]...)
			i--
		}
	}
	heap.Init(&d.children)
	return nil
}

func (d *Disjunction) Copy() Matcher {
	cp := &Disjunction{
		children: make(childHeap, len(d.children)),
		inactive: make([]Matcher, len(d.inactive)),
	}
	for i, ch := range d.children {
		cp.children[i] = ch.Copy()
	}
	for i, ch := range d.inactive {
		cp.inactive[i] = ch.Copy()
	}
	return cp
}
