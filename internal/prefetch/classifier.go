package prefetch

import "math"

const (
	explicitBandwidthConfidence = 0.9
	inferredBandwidthConfidence = 0.6
)

// connectionProfile is the assumed link quality for a connection type.
type connectionProfile struct {
	bandwidthMbps float64
	latencyMs     int
}

func profileForConnection(ct ConnectionType) connectionProfile {
	switch ct {
	case ConnectionSlow2G, Connection2G:
		return connectionProfile{bandwidthMbps: 0.25, latencyMs: 300}
	case Connection3G:
		return connectionProfile{bandwidthMbps: 1.5, latencyMs: 150}
	case Connection4G:
		return connectionProfile{bandwidthMbps: 10, latencyMs: 50}
	case ConnectionWiFi:
		return connectionProfile{bandwidthMbps: 25, latencyMs: 20}
	default:
		return connectionProfile{bandwidthMbps: 5, latencyMs: 100}
	}
}

// Classifier turns client network hints into a NetworkCondition.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier using the given bandwidth thresholds.
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify never fails. An explicit positive bandwidth always wins over the
// connection type; otherwise the connection type table supplies a guess.
// Latency is carried through untouched and does not influence the type; on
// the table path the table's typical latency is reported separately.
func (c *Classifier) Classify(hint NetworkHint) NetworkCondition {
	ct := ParseConnectionType(string(hint.ConnectionType))

	if usableBandwidth(hint.BandwidthMbps) {
		return NetworkCondition{
			Type:           c.thresholds.TypeFor(hint.BandwidthMbps),
			BandwidthMbps:  hint.BandwidthMbps,
			LatencyMs:      hint.LatencyMs,
			Confidence:     explicitBandwidthConfidence,
			ConnectionType: ct,
			Source:         SourceExplicitBandwidth,
		}
	}

	profile := profileForConnection(ct)
	return NetworkCondition{
		Type:               c.thresholds.TypeFor(profile.bandwidthMbps),
		BandwidthMbps:      profile.bandwidthMbps,
		LatencyMs:          hint.LatencyMs,
		EstimatedLatencyMs: profile.latencyMs,
		Confidence:         inferredBandwidthConfidence,
		ConnectionType:     ct,
		Source:             SourceConnectionType,
	}
}

// usableBandwidth treats zero, negative, NaN and infinite values as absent.
func usableBandwidth(mbps float64) bool {
	return mbps > 0 && !math.IsNaN(mbps) && !math.IsInf(mbps, 0)
}
