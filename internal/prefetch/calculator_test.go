package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBasePolicy(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	steady := ScrollPattern{ScrollVelocity: 1.0}

	testCases := []struct {
		network  NetworkType
		count    int
		priority []Quality
		budget   float64
	}{
		{NetworkSlow, 2, []Quality{Quality480p}, 10},
		{NetworkMedium, 4, []Quality{Quality480p, Quality720p}, 30},
		{NetworkFast, 6, []Quality{Quality720p, Quality480p}, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.network.String(), func(t *testing.T) {
			s := calc.Calculate(NetworkCondition{Type: tc.network}, steady)
			assert.Equal(t, tc.count, s.BaseCount)
			assert.Equal(t, tc.priority, s.QualityPriority)
			assert.Equal(t, tc.budget, s.MaxPrefetchSizeMB)
			assert.Equal(t, AdjustNone, s.Adjustment)
		})
	}
}

func TestCalculateScrollAdjustments(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	testCases := []struct {
		name       string
		network    NetworkType
		velocity   float64
		count      int
		adjustment ScrollAdjustment
	}{
		{"fast scroll on slow network", NetworkSlow, 3.0, 4, AdjustDeepen},
		{"fast scroll on medium network", NetworkMedium, 2.5, 6, AdjustDeepen},
		{"fast scroll clamps at max", NetworkFast, 3.0, 8, AdjustDeepen},
		{"exactly 2.0 is not fast", NetworkMedium, 2.0, 4, AdjustNone},
		{"exactly 0.5 is not slow", NetworkMedium, 0.5, 4, AdjustNone},
		{"slow browse on medium network", NetworkMedium, 0.2, 3, AdjustShallow},
		{"slow browse on fast network", NetworkFast, 0.1, 5, AdjustShallow},
		{"slow browse clamps at min", NetworkSlow, 0, 2, AdjustShallow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := calc.Calculate(NetworkCondition{Type: tc.network}, ScrollPattern{ScrollVelocity: tc.velocity})
			assert.Equal(t, tc.count, s.BaseCount)
			assert.Equal(t, tc.adjustment, s.Adjustment)
		})
	}
}

func TestCalculateCountAlwaysWithinBounds(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	for _, network := range []NetworkType{NetworkSlow, NetworkMedium, NetworkFast} {
		for _, velocity := range []float64{0, 0.25, 0.49, 0.5, 1, 2, 2.01, 5, 1000} {
			s := calc.Calculate(NetworkCondition{Type: network}, ScrollPattern{ScrollVelocity: velocity})
			assert.GreaterOrEqual(t, s.BaseCount, 2)
			assert.LessOrEqual(t, s.BaseCount, 8)
			assert.NotEmpty(t, s.QualityPriority)
		}
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	cond := NetworkCondition{Type: NetworkFast, BandwidthMbps: 12, Confidence: 0.9}
	pattern := ScrollPattern{ScrollVelocity: 2.5, AverageViewTimeMs: 4000}

	first := calc.Calculate(cond, pattern)
	first.QualityPriority[0] = Quality480p // callers must not be able to corrupt the table

	second := calc.Calculate(cond, pattern)
	third := calc.Calculate(cond, pattern)
	assert.Equal(t, second, third)
	assert.Equal(t, []Quality{Quality720p, Quality480p}, second.QualityPriority)
}

func TestReferenceScenarios(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil, nil)

	t.Run("explicit bandwidth wins over connection type", func(t *testing.T) {
		cond, _, s := engine.Plan(
			NetworkHint{BandwidthMbps: 0.5, ConnectionType: ConnectionWiFi},
			ScrollHint{ScrollVelocity: 1.0},
		)
		assert.Equal(t, NetworkSlow, cond.Type)
		assert.Equal(t, 2, s.BaseCount)
		assert.Equal(t, []Quality{Quality480p}, s.QualityPriority)
	})

	t.Run("wifi lookup with fast scrolling", func(t *testing.T) {
		cond, _, s := engine.Plan(
			NetworkHint{BandwidthMbps: 0, ConnectionType: ConnectionWiFi},
			ScrollHint{ScrollVelocity: 3.0},
		)
		assert.Equal(t, NetworkFast, cond.Type)
		assert.Equal(t, 25.0, cond.BandwidthMbps)
		assert.Equal(t, 8, s.BaseCount)
		assert.Equal(t, []Quality{Quality720p, Quality480p}, s.QualityPriority)
	})

	t.Run("medium network with slow scrolling", func(t *testing.T) {
		cond, _, s := engine.Plan(
			NetworkHint{BandwidthMbps: 3.0},
			ScrollHint{ScrollVelocity: 0.2},
		)
		assert.Equal(t, NetworkMedium, cond.Type)
		assert.Equal(t, 3, s.BaseCount)
	})
}

func TestAnalyzeDefaults(t *testing.T) {
	a := NewAnalyzer(DefaultConfig().Scroll)

	p := a.Analyze(ScrollHint{})
	assert.Equal(t, DefaultAverageViewTimeMs, p.AverageViewTimeMs)
	assert.Equal(t, 0.0, p.ScrollVelocity, "zero velocity is a valid reading")
	assert.Equal(t, PreferenceAuto, p.QualityPreference)
	assert.Equal(t, 0, p.DirectionChanges)
	assert.Equal(t, ScrollDeliberate, p.Profile)

	p = a.Analyze(ScrollHint{AverageViewTimeMs: -5, ScrollVelocity: -1, QualityPreference: "8k"})
	assert.Equal(t, DefaultAverageViewTimeMs, p.AverageViewTimeMs)
	assert.Equal(t, DefaultScrollVelocity, p.ScrollVelocity)
	assert.Equal(t, PreferenceAuto, p.QualityPreference)
	assert.Equal(t, ScrollSteady, p.Profile)
}

func TestAnalyzeMapsFields(t *testing.T) {
	p := NewAnalyzer(DefaultConfig().Scroll).Analyze(ScrollHint{
		AverageViewTimeMs: 2500,
		ScrollVelocity:    3.5,
		QualityPreference: "720P",
	})
	assert.Equal(t, 2500, p.AverageViewTimeMs)
	assert.Equal(t, 3.5, p.ScrollVelocity)
	assert.Equal(t, Preference720p, p.QualityPreference)
	assert.Equal(t, ScrollRapid, p.Profile)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Network.MediumBelowMbps = cfg.Network.SlowBelowMbps
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Policies[NetworkMedium].QualityPriority = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinCount, cfg.MaxCount = 5, 3
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CandidateTimeout = 0
	assert.Error(t, cfg.Validate())
}
