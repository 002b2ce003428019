package matcher

// Conjunction intersects its children: it repeatedly skips the lagging
// child to the leader's id, block-quality is the sum of children's block
// qualities, and Next advances the minimum child.
type Conjunction struct {
	children []Matcher
	active   bool
}

// NewConjunction builds a Conjunction over children, already positioned on
// their first posting (or inactive). Returns an inactive matcher if any
// child is empty.
func NewConjunction(children []Matcher) *Conjunction {
	c := &Conjunction{children: children}
	c.converge()
	return c
}

// converge advances all lagging children until they agree on one doc ID,
// or one child runs out.
func (c *Conjunction) converge() {
	if len(c.children) == 0 {
		c.active = false
		return
	}
	for _, ch := range c.children {
		if !ch.IsActive() {
			c.active = false
			return
		}
	}
	for {
		maxID := uint32(0)
		for _, ch := range c.children {
			if ch.ID() > maxID {
				maxID = ch.ID()
			}
		}
		allMatch := true
		for _, ch := range c.children {
			if ch.ID() != maxID {
				if err := ch.SkipTo(maxID); err != nil {
					c.active = false
					return
				}
				if !ch.IsActive() {
					c.active = false
					return
				}
				if ch.ID() != maxID {
					allMatch = false
				}
			}
		}
		if allMatch {
			c.active = true
			return
		}
	}
}

func (c *Conjunction) IsActive() bool { return c.active }

func (c *Conjunction) ID() uint32 {
	if !c.active {
		return NoMoreDocs
	}
	return c.children[0].ID()
}

func (c *Conjunction) Next() error {
	if !c.active {
		return nil
	}
	for _, ch := range c.children {
		if err := ch.Next(); err != nil {
			return err
		}
	}
	c.converge()
	return nil
}

func (c *Conjunction) SkipTo(target uint32) error {
	if !c.active {
		return nil
	}
	for _, ch := range c.children {
		if ch.ID() < target {
			if err := ch.SkipTo(target); err != nil {
				return err
			}
		}
	}
	c.converge()
	return nil
}

func (c *Conjunction) Weight() float64 {
	if !c.active {
		return 0
	}
	return c.children[0].Weight()
}

func (c *Conjunction) Score() float64 {
	if !c.active {
		return 0
	}
	var sum float64
	for _, ch := range c.children {
		sum += ch.Score()
	}
	return sum
}

func (c *Conjunction) SupportsQuality() bool {
	for _, ch := range c.children {
		if !ch.SupportsQuality() {
			return false
		}
	}
	return true
}

func (c *Conjunction) BlockQuality() float64 {
	var sum float64
	for _, ch := range c.children {
		sum += ch.BlockQuality()
	}
	return sum
}

// SkipToQuality is a no-op and is not forwarded to the children: a
// conjunction only produces a hit when every child agrees on a doc, so
// pruning whole blocks here would require knowing every child's block
// boundary aligns, which is not guaranteed. Work is skipped only through
// the intersection's own SkipTo calls.
func (c *Conjunction) SkipToQuality(min float64) error {
	return nil
}

func (c *Conjunction) Copy() Matcher {
	cp := &Conjunction{active: c.active}
	cp.children = make([]Matcher, len(c.children))
	for i, ch := range c.children {
		cp.children[i] = ch.Copy()
	}
	return cp
}
