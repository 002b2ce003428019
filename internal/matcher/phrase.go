package matcher

// Positioned is implemented by matchers that expose the current posting's
// within-document position stream, which phrase matching needs.
type Positioned interface {
	Matcher
	Positions() []uint32
}

// Phrase intersects its word matchers like a conjunction, then gates each
// candidate doc on a position check: the children's position streams must
// contain at least one subsequence where the k-th word appears within
// slop of position(word 0)+k. With slop 0 the words must be exactly
// adjacent in order. Docs failing the check are skipped.
type Phrase struct {
	words  []Positioned
	conj   *Conjunction
	slop   int
	active bool
}

// NewPhrase builds a phrase matcher over words in query order. Every word
// matcher must expose positions; fields indexed without positions cannot
// participate in phrase queries and should be rejected before this point.
func NewPhrase(words []Positioned, slop int) *Phrase {
	children := make([]Matcher, len(words))
	for i, w := range words {
		children[i] = w
	}
	p := &Phrase{words: words, conj: NewConjunction(children), slop: slop}
	p.settle()
	return p
}

// settle advances the underlying conjunction until the position check
// passes or the conjunction runs out.
func (p *Phrase) settle() {
	for p.conj.IsActive() {
		if p.positionsAlign() {
			p.active = true
			return
		}
		if err := p.conj.Next(); err != nil {
			break
		}
	}
	p.active = false
}

// positionsAlign reports whether the current doc contains the words at
// consecutive (within slop) positions. For each candidate start position
// of word 0, each subsequent word k must occur in [start+k, start+k+slop];
// every word is checked against its own window, so displacements are not
// summed across words.
func (p *Phrase) positionsAlign() bool {
	if len(p.words) == 0 {
		return false
	}
	first := p.words[0].Positions()
	for _, start := range first {
		ok := true
		for k := 1; k < len(p.words); k++ {
			want := start + uint32(k)
			if !containsWithin(p.words[k].Positions(), want, p.slop) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// containsWithin reports whether positions (sorted ascending) contains a
// value in [want, want+slop].
func containsWithin(positions []uint32, want uint32, slop int) bool {
	for _, pos := range positions {
		if pos >= want {
			return pos <= want+uint32(slop)
		}
	}
	return false
}

func (p *Phrase) IsActive() bool { return p.active }

func (p *Phrase) ID() uint32 {
	if !p.active {
		return NoMoreDocs
	}
	return p.conj.ID()
}

func (p *Phrase) Next() error {
	if !p.active {
		return nil
	}
	if err := p.conj.Next(); err != nil {
		return err
	}
	p.settle()
	return nil
}

func (p *Phrase) SkipTo(target uint32) error {
	if err := p.conj.SkipTo(target); err != nil {
		return err
	}
	p.settle()
	return nil
}

func (p *Phrase) Weight() float64 {
	if !p.active {
		return 0
	}
	return p.conj.Weight()
}

func (p *Phrase) Score() float64 {
	if !p.active {
		return 0
	}
	return p.conj.Score()
}

func (p *Phrase) SupportsQuality() bool { return p.conj.SupportsQuality() }
func (p *Phrase) BlockQuality() float64 { return p.conj.BlockQuality() }

func (p *Phrase) SkipToQuality(min float64) error {
	if err := p.conj.SkipToQuality(min); err != nil {
		return err
	}
	if p.active && !p.conj.IsActive() {
		p.active = false
	}
	return nil
}

func (p *Phrase) Copy() Matcher {
	words := make([]Positioned, len(p.words))
	for i, w := range p.words {
		words[i] = w.Copy().(Positioned)
	}
	return NewPhrase(words, p.slop)
}
