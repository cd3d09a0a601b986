package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	bandwidth      float64
	latency        int
	connectionType string
	avgViewTime    int
	scrollVelocity float64
	quality        string
	candidates     int
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the prefetch policy on hypothetical client hints",
	Long: `Classify the given network and scroll hints, calculate a strategy and
apply it to a synthetic feed of candidate videos (c1, c2, ...).

Examples:
  prefetchctl simulate --bandwidth 0.8
  prefetchctl simulate --connection 4g --velocity 3
  prefetchctl simulate --bandwidth 12 --candidates 3 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate(cmd.Context(), cmd.OutOrStdout(), simOpts, prefetch.DefaultConfig())
	},
}

func init() {
	f := simulateCmd.Flags()
	f.Float64Var(&simOpts.bandwidth, "bandwidth", 0, "Measured bandwidth in Mbps (0 = unknown)")
	f.IntVar(&simOpts.latency, "latency", 0, "Round-trip latency in ms (0 = unknown)")
	f.StringVar(&simOpts.connectionType, "connection", "unknown", "Connection type: slow-2g, 2g, 3g, 4g, wifi, unknown")
	f.IntVar(&simOpts.avgViewTime, "view-time", prefetch.DefaultAverageViewTimeMs, "Average view time per video in ms")
	f.Float64Var(&simOpts.scrollVelocity, "velocity", prefetch.DefaultScrollVelocity, "Scroll velocity in videos per second")
	f.StringVar(&simOpts.quality, "quality", "auto", "Quality preference: auto, 480p, 720p")
	f.IntVar(&simOpts.candidates, "candidates", 20, "Number of videos available in the synthetic feed")
}

type simulation struct {
	Condition      prefetch.NetworkCondition `json:"condition"`
	Pattern        prefetch.ScrollPattern    `json:"pattern"`
	Strategy       prefetch.Strategy         `json:"strategy"`
	Recommendation prefetch.Recommendation   `json:"recommendation"`
}

func runSimulate(ctx context.Context, w io.Writer, opts simulateOptions, cfg prefetch.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.candidates < 0 {
		return fmt.Errorf("--candidates must not be negative")
	}

	feed := prefetch.CandidateSourceFunc(func(_ context.Context, q prefetch.CandidateQuery) ([]string, error) {
		ids := make([]string, 0, q.Limit)
		for i := 1; i <= opts.candidates && len(ids) < q.Limit; i++ {
			ids = append(ids, fmt.Sprintf("c%d", i))
		}
		return ids, nil
	})
	engine := prefetch.NewEngine(cfg, feed, nil)

	result := engine.Recommend(ctx, prefetch.Request{
		SessionID: "simulation",
		Network: prefetch.NetworkHint{
			BandwidthMbps:  opts.bandwidth,
			LatencyMs:      opts.latency,
			ConnectionType: prefetch.ParseConnectionType(opts.connectionType),
		},
		Scroll: prefetch.ScrollHint{
			AverageViewTimeMs: opts.avgViewTime,
			ScrollVelocity:    opts.scrollVelocity,
			QualityPreference: prefetch.ParseQualityPreference(opts.quality),
		},
	})

	sim := simulation{
		Condition:      result.Condition,
		Pattern:        result.Pattern,
		Strategy:       result.Strategy,
		Recommendation: result.Recommendation,
	}

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sim)
	}
	printSimulation(w, sim)
	return nil
}

func printSimulation(w io.Writer, sim simulation) {
	c, p, s, r := sim.Condition, sim.Pattern, sim.Strategy, sim.Recommendation

	fmt.Fprintf(w, "\nNetwork\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Type:        %s\n", c.Type)
	fmt.Fprintf(w, "Bandwidth:   %.2f Mbps (%s)\n", c.BandwidthMbps, c.Source)
	fmt.Fprintf(w, "Latency:     %d ms\n", c.LatencyMs)
	if c.EstimatedLatencyMs > 0 {
		fmt.Fprintf(w, "Est latency: %d ms (%s)\n", c.EstimatedLatencyMs, c.ConnectionType)
	}
	fmt.Fprintf(w, "Confidence:  %.1f\n", c.Confidence)

	fmt.Fprintf(w, "\nScroll\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Profile:     %s\n", p.Profile)
	fmt.Fprintf(w, "Velocity:    %.2f\n", p.ScrollVelocity)
	fmt.Fprintf(w, "View time:   %d ms\n", p.AverageViewTimeMs)

	qualities := make([]string, 0, len(s.QualityPriority))
	for _, q := range s.QualityPriority {
		qualities = append(qualities, string(q))
	}
	fmt.Fprintf(w, "\nStrategy\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Base count:  %d (%s)\n", s.BaseCount, s.Adjustment)
	fmt.Fprintf(w, "Quality:     %s\n", strings.Join(qualities, " > "))
	fmt.Fprintf(w, "Budget:      %.0f MB\n", s.MaxPrefetchSizeMB)

	fmt.Fprintf(w, "\nRecommendation\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	if r.Empty() {
		fmt.Fprintf(w, "No prefetch (%s)\n", r.Fallback)
	}
	for i, id := range r.VideoIDs {
		fmt.Fprintf(w, "%2d. %-8s %s\n", i+1, id, r.QualityMap[id])
	}
	fmt.Fprintf(w, "Estimated:   %.1f MB\n\n", r.EstimatedSizeMB)
}
