// Package prefetch decides how many upcoming videos a client should preload,
// at which quality, and within which byte budget.
//
// Every request is classified from scratch: network hints and scroll hints are
// turned into a NetworkCondition and a ScrollPattern, those are combined into a
// Strategy, and the Strategy is applied to the next page of candidate videos.
// Nothing is remembered between requests.
package prefetch

import (
	"fmt"
	"strings"
)

// NetworkType is the coarse network classification. The zero value is slow.
type NetworkType uint8

const (
	NetworkSlow NetworkType = iota
	NetworkMedium
	NetworkFast

	networkTypeCount
)

var networkTypeNames = [networkTypeCount]string{
	NetworkSlow:   "slow",
	NetworkMedium: "medium",
	NetworkFast:   "fast",
}

func (t NetworkType) String() string {
	if t < networkTypeCount {
		return networkTypeNames[t]
	}
	return fmt.Sprintf("NetworkType(%d)", uint8(t))
}

// MarshalText lets NetworkType serialize as its name in JSON.
func (t NetworkType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// NetworkTypes lists every network type from slowest to fastest.
func NetworkTypes() []NetworkType {
	return []NetworkType{NetworkSlow, NetworkMedium, NetworkFast}
}

// ParseNetworkType parses "slow", "medium" or "fast".
func ParseNetworkType(s string) (NetworkType, bool) {
	for i, name := range networkTypeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return NetworkType(i), true
		}
	}
	return NetworkSlow, false
}

// ConnectionType is the client's self-reported link type (Network Information API values).
type ConnectionType string

const (
	ConnectionSlow2G  ConnectionType = "slow-2g"
	Connection2G      ConnectionType = "2g"
	Connection3G      ConnectionType = "3g"
	Connection4G      ConnectionType = "4g"
	ConnectionWiFi    ConnectionType = "wifi"
	ConnectionUnknown ConnectionType = "unknown"
)

// ParseConnectionType normalizes a raw client string. Anything unrecognized is unknown.
func ParseConnectionType(s string) ConnectionType {
	switch ct := ConnectionType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ConnectionSlow2G, Connection2G, Connection3G, Connection4G, ConnectionWiFi:
		return ct
	default:
		return ConnectionUnknown
	}
}

// Quality is the rendition set to prefetch for one video.
type Quality string

const (
	Quality480p Quality = "480p"
	Quality720p Quality = "720p"
	QualityBoth Quality = "both"
)

// QualityPreference is what the client asked for. It is carried for
// diagnostics; the current policy does not act on it.
type QualityPreference string

const (
	PreferenceAuto QualityPreference = "auto"
	Preference480p QualityPreference = "480p"
	Preference720p QualityPreference = "720p"
)

// ParseQualityPreference maps unknown values to auto.
func ParseQualityPreference(s string) QualityPreference {
	switch p := QualityPreference(strings.ToLower(strings.TrimSpace(s))); p {
	case Preference480p, Preference720p:
		return p
	default:
		return PreferenceAuto
	}
}

// NetworkHint is the untrusted network information sent by the client.
type NetworkHint struct {
	BandwidthMbps  float64
	LatencyMs      int
	ConnectionType ConnectionType
}

// ConditionSource records where the bandwidth figure came from.
type ConditionSource string

const (
	SourceExplicitBandwidth ConditionSource = "bandwidth"
	SourceConnectionType    ConditionSource = "connection_type"
)

// NetworkCondition is the classified network state for one request.
// LatencyMs is whatever the client reported (0 when absent).
// EstimatedLatencyMs is the connection table's typical latency and is only
// set when the condition was inferred from the connection type.
type NetworkCondition struct {
	Type               NetworkType
	BandwidthMbps      float64
	LatencyMs          int
	EstimatedLatencyMs int
	Confidence         float64
	ConnectionType     ConnectionType
	Source             ConditionSource
}

// ScrollHint is the untrusted viewing behaviour sent by the client.
type ScrollHint struct {
	AverageViewTimeMs int
	ScrollVelocity    float64
	QualityPreference QualityPreference
}

// ScrollProfile is a label for the scroll axis, used in reasoning output.
type ScrollProfile string

const (
	ScrollRapid      ScrollProfile = "rapid"
	ScrollSteady     ScrollProfile = "steady"
	ScrollDeliberate ScrollProfile = "deliberate"
)

// ScrollPattern is the normalized scroll behaviour for one request.
type ScrollPattern struct {
	AverageViewTimeMs int
	ScrollVelocity    float64
	// DirectionChanges is reserved for client instrumentation and is always 0.
	DirectionChanges  int
	QualityPreference QualityPreference
	Profile           ScrollProfile
}

// ScrollAdjustment names the depth adjustment the calculator applied.
type ScrollAdjustment string

const (
	AdjustNone    ScrollAdjustment = "none"
	AdjustDeepen  ScrollAdjustment = "deepen"
	AdjustShallow ScrollAdjustment = "shallow"
)

// Strategy is the concrete prefetch plan for one request.
type Strategy struct {
	NetworkType       NetworkType
	BaseCount         int
	QualityPriority   []Quality
	MaxPrefetchSizeMB float64
	Adjustment        ScrollAdjustment
}

// FallbackReason explains why a recommendation came back empty.
type FallbackReason string

const (
	FallbackNone             FallbackReason = ""
	FallbackCandidateError   FallbackReason = "candidate_error"
	FallbackCandidateTimeout FallbackReason = "candidate_timeout"
	FallbackNoCandidates     FallbackReason = "no_candidates"
)

// Reasoning holds human-readable summaries of the rules that fired.
// The wording is not a contract.
type Reasoning struct {
	NetworkCondition string
	ScrollPattern    string
	Strategy         string
}

// Recommendation is the per-request output. VideoIDs is in priority order,
// most urgent first, and every ID has exactly one QualityMap entry.
type Recommendation struct {
	VideoIDs        []string
	QualityMap      map[string]Quality
	EstimatedSizeMB float64
	Reasoning       Reasoning
	Fallback        FallbackReason
}

// Empty reports whether nothing is to be prefetched.
func (r Recommendation) Empty() bool {
	return len(r.VideoIDs) == 0
}
