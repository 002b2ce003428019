package matcher

// Negation implements A AND NOT B: it yields A's postings, advancing A
// past any doc B also matches. Score and quality are A's alone; B never
// contributes to ranking.
type Negation struct {
	include Matcher
	exclude Matcher
}

func NewNegation(include, exclude Matcher) *Negation {
	n := &Negation{include: include, exclude: exclude}
	n.settle()
	return n
}

// settle advances include until it sits on a doc exclude does not match.
func (n *Negation) settle() {
	for n.include.IsActive() {
		cur := n.include.ID()
		if n.exclude.IsActive() && n.exclude.ID() < cur {
			if err := n.exclude.SkipTo(cur); err != nil {
				return
			}
		}
		if !n.exclude.IsActive() || n.exclude.ID() != cur {
			return
		}
		if err := n.include.Next(); err != nil {
			return
		}
	}
}

func (n *Negation) IsActive() bool { return n.include.IsActive() }

func (n *Negation) ID() uint32 { return n.include.ID() }

func (n *Negation) Next() error {
	if err := n.include.Next(); err != nil {
		return err
	}
	n.settle()
	return nil
}

func (n *Negation) SkipTo(target uint32) error {
	if err := n.include.SkipTo(target); err != nil {
		return err
	}
	n.settle()
	return nil
}

func (n *Negation) Weight() float64 { return n.include.Weight() }
func (n *Negation) Score() float64  { return n.include.Score() }

func (n *Negation) SupportsQuality() bool { return n.include.SupportsQuality() }
func (n *Negation) BlockQuality() float64 { return n.include.BlockQuality() }

func (n *Negation) SkipToQuality(min float64) error {
	if err := n.include.SkipToQuality(min); err != nil {
		return err
	}
	n.settle()
	return nil
}

func (n *Negation) Copy() Matcher {
	return &Negation{include: n.include.Copy(), exclude: n.exclude.Copy()}
}
