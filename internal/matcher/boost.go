package matcher

// Boost multiplies a child's scores (and quality bounds, so pruning stays
// correct) by a constant factor.
type Boost struct {
	child  Matcher
	factor float64
}

func NewBoost(child Matcher, factor float64) *Boost {
	return &Boost{child: child, factor: factor}
}

func (b *Boost) IsActive() bool             { return b.child.IsActive() }
func (b *Boost) ID() uint32                 { return b.child.ID() }
func (b *Boost) Next() error                { return b.child.Next() }
func (b *Boost) SkipTo(target uint32) error { return b.child.SkipTo(target) }
func (b *Boost) Weight() float64            { return b.child.Weight() }
func (b *Boost) Score() float64             { return b.child.Score() * b.factor }
func (b *Boost) SupportsQuality() bool      { return b.child.SupportsQuality() }
func (b *Boost) BlockQuality() float64      { return b.child.BlockQuality() * b.factor }

func (b *Boost) SkipToQuality(min float64) error {
	if b.factor <= 0 {
		return nil
	}
	return b.child.SkipToQuality(min / b.factor)
}

func (b *Boost) Copy() Matcher {
	return &Boost{child: b.child.Copy(), factor: b.factor}
}

// ConstScore replaces a child's scores with a fixed value; the child only
// decides which docs match.
type ConstScore struct {
	child Matcher
	score float64
}

func NewConstScore(child Matcher, score float64) *ConstScore {
	return &ConstScore{child: child, score: score}
}

func (c *ConstScore) IsActive() bool             { return c.child.IsActive() }
func (c *ConstScore) ID() uint32                 { return c.child.ID() }
func (c *ConstScore) Next() error                { return c.child.Next() }
func (c *ConstScore) SkipTo(target uint32) error { return c.child.SkipTo(target) }
func (c *ConstScore) Weight() float64            { return c.child.Weight() }
func (c *ConstScore) Score() float64             { return c.score }

// Every matching doc scores exactly the constant, so block bounds are the
// constant as well; there is nothing finer-grained to skip.
func (c *ConstScore) SupportsQuality() bool       { return false }
func (c *ConstScore) BlockQuality() float64       { return c.score }
func (c *ConstScore) SkipToQuality(float64) error { return nil }

func (c *ConstScore) Copy() Matcher {
	return &ConstScore{child: c.child.Copy(), score: c.score}
}
