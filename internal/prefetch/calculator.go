package prefetch

// Calculator combines a network condition and a scroll pattern into a Strategy.
// The network axis fixes quality order and byte budget; the scroll axis only
// moves the prefetch depth.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator over the given policy.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate is pure: identical inputs always produce identical strategies.
func (c *Calculator) Calculate(condition NetworkCondition, pattern ScrollPattern) Strategy {
	policy := c.cfg.Policy(condition.Type)

	count := policy.BaseCount
	adjustment := AdjustNone
	switch {
	case pattern.ScrollVelocity > c.cfg.Scroll.FastAboveVelocity:
		count = min(count+c.cfg.FastScrollBoost, c.cfg.MaxCount)
		adjustment = AdjustDeepen
	case pattern.ScrollVelocity < c.cfg.Scroll.SlowBelowVelocity:
		count = max(count-c.cfg.SlowScrollCut, c.cfg.MinCount)
		adjustment = AdjustShallow
	}
	count = max(c.cfg.MinCount, min(count, c.cfg.MaxCount))

	priority := make([]Quality, len(policy.QualityPriority))
	copy(priority, policy.QualityPriority)
	if len(priority) == 0 {
		priority = []Quality{Quality480p}
	}

	return Strategy{
		NetworkType:       condition.Type,
		BaseCount:         count,
		QualityPriority:   priority,
		MaxPrefetchSizeMB: policy.MaxPrefetchSizeMB,
		Adjustment:        adjustment,
	}
}
