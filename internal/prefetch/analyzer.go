package prefetch

import "math"

const (
	DefaultAverageViewTimeMs = 6000
	DefaultScrollVelocity    = 1.0
)

// Analyzer normalizes scroll hints into a ScrollPattern.
type Analyzer struct {
	thresholds ScrollThresholds
}

// NewAnalyzer creates an analyzer. The thresholds only label the pattern; the
// calculator applies the same thresholds when adjusting depth.
func NewAnalyzer(thresholds ScrollThresholds) *Analyzer {
	return &Analyzer{thresholds: thresholds}
}

// Analyze is a field mapping with defaults for missing or nonsensical values.
func (a *Analyzer) Analyze(hint ScrollHint) ScrollPattern {
	viewTime := hint.AverageViewTimeMs
	if viewTime <= 0 {
		viewTime = DefaultAverageViewTimeMs
	}

	velocity := hint.ScrollVelocity
	if velocity < 0 || math.IsNaN(velocity) || math.IsInf(velocity, 0) {
		velocity = DefaultScrollVelocity
	}

	return ScrollPattern{
		AverageViewTimeMs: viewTime,
		ScrollVelocity:    velocity,
		DirectionChanges:  0,
		QualityPreference: ParseQualityPreference(string(hint.QualityPreference)),
		Profile:           a.thresholds.ProfileFor(velocity),
	}
}
