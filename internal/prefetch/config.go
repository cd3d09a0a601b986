package prefetch

import (
	"fmt"
	"time"
)

// Thresholds splits bandwidth into network types. Bandwidth below
// SlowBelowMbps is slow, below MediumBelowMbps is medium, anything else fast.
type Thresholds struct {
	SlowBelowMbps   float64
	MediumBelowMbps float64
}

// TypeFor classifies a bandwidth figure. It is monotonic in mbps.
func (t Thresholds) TypeFor(mbps float64) NetworkType {
	switch {
	case mbps < t.SlowBelowMbps:
		return NetworkSlow
	case mbps < t.MediumBelowMbps:
		return NetworkMedium
	default:
		return NetworkFast
	}
}

// ScrollThresholds splits scroll velocity (videos/sec) into profiles.
type ScrollThresholds struct {
	FastAboveVelocity float64
	SlowBelowVelocity float64
}

// ProfileFor labels a scroll velocity.
func (t ScrollThresholds) ProfileFor(velocity float64) ScrollProfile {
	switch {
	case velocity > t.FastAboveVelocity:
		return ScrollRapid
	case velocity < t.SlowBelowVelocity:
		return ScrollDeliberate
	default:
		return ScrollSteady
	}
}

// TierPolicy is the base plan for one network type.
type TierPolicy struct {
	BaseCount         int
	QualityPriority   []Quality
	MaxPrefetchSizeMB float64
}

// TierSizes are per-video payload estimates in MB.
type TierSizes struct {
	LowMB  float64
	HighMB float64
	BothMB float64
}

// For returns the estimate for a quality tier.
func (s TierSizes) For(q Quality) float64 {
	switch q {
	case Quality480p:
		return s.LowMB
	case Quality720p:
		return s.HighMB
	case QualityBoth:
		return s.BothMB
	default:
		return 0
	}
}

// Config is the immutable policy shared by classifier, calculator and builder.
// Pass it by value; the engine copies it on construction.
type Config struct {
	Network  Thresholds
	Scroll   ScrollThresholds
	Policies [networkTypeCount]TierPolicy

	MinCount          int
	MaxCount          int
	FastScrollBoost   int
	SlowScrollCut     int
	CandidateHeadroom int
	UrgentCount       int

	Sizes            TierSizes
	CandidateTimeout time.Duration
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		Network: Thresholds{SlowBelowMbps: 1.0, MediumBelowMbps: 5.0},
		Scroll:  ScrollThresholds{FastAboveVelocity: 2.0, SlowBelowVelocity: 0.5},
		Policies: [networkTypeCount]TierPolicy{
			NetworkSlow:   {BaseCount: 2, QualityPriority: []Quality{Quality480p}, MaxPrefetchSizeMB: 10},
			NetworkMedium: {BaseCount: 4, QualityPriority: []Quality{Quality480p, Quality720p}, MaxPrefetchSizeMB: 30},
			NetworkFast:   {BaseCount: 6, QualityPriority: []Quality{Quality720p, Quality480p}, MaxPrefetchSizeMB: 100},
		},
		MinCount:          2,
		MaxCount:          8,
		FastScrollBoost:   2,
		SlowScrollCut:     1,
		CandidateHeadroom: 2,
		UrgentCount:       2,
		Sizes:             TierSizes{LowMB: 1.5, HighMB: 2.5, BothMB: 4.0},
		CandidateTimeout:  150 * time.Millisecond,
	}
}

// Policy returns the base plan for a network type.
func (c Config) Policy(t NetworkType) TierPolicy {
	return c.Policies[t]
}

// Validate rejects configurations that would break the engine's invariants.
func (c Config) Validate() error {
	if c.Network.SlowBelowMbps <= 0 {
		return fmt.Errorf("slow bandwidth threshold must be positive, got %v", c.Network.SlowBelowMbps)
	}
	if c.Network.MediumBelowMbps <= c.Network.SlowBelowMbps {
		return fmt.Errorf("medium bandwidth threshold %v must exceed slow threshold %v",
			c.Network.MediumBelowMbps, c.Network.SlowBelowMbps)
	}
	if c.Scroll.SlowBelowVelocity > c.Scroll.FastAboveVelocity {
		return fmt.Errorf("slow scroll velocity %v must not exceed fast scroll velocity %v",
			c.Scroll.SlowBelowVelocity, c.Scroll.FastAboveVelocity)
	}
	if c.MinCount < 1 || c.MaxCount < c.MinCount {
		return fmt.Errorf("invalid prefetch count bounds [%d, %d]", c.MinCount, c.MaxCount)
	}
	if c.CandidateHeadroom < 0 || c.UrgentCount < 0 || c.FastScrollBoost < 0 || c.SlowScrollCut < 0 {
		return fmt.Errorf("prefetch count adjustments must not be negative")
	}
	for t := NetworkType(0); t < networkTypeCount; t++ {
		p := c.Policies[t]
		if len(p.QualityPriority) == 0 {
			return fmt.Errorf("%s policy has no quality priority", t)
		}
		if p.MaxPrefetchSizeMB <= 0 {
			return fmt.Errorf("%s policy has no byte budget", t)
		}
	}
	if c.Sizes.LowMB < 0 || c.Sizes.HighMB < 0 || c.Sizes.BothMB < 0 {
		return fmt.Errorf("tier size estimates must not be negative")
	}
	if c.CandidateTimeout <= 0 {
		return fmt.Errorf("candidate timeout must be positive, got %s", c.CandidateTimeout)
	}
	return nil
}
