package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nostrvine/backend/internal/telemetry"
	"github.com/spf13/cobra"
)

var fetchOpts simulateOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Ask a running prefetch API for a recommendation",
	Long: `Send client hints to GET /api/v1/prefetch and print the answer.

Examples:
  prefetchctl fetch --session abc --bandwidth 3.2
  prefetchctl fetch --api https://api.example.com --connection 3g --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		current, _ := cmd.Flags().GetString("current")
		cursor, _ := cmd.Flags().GetString("cursor")

		params := url.Values{}
		setIfNotEmpty(params, "sessionId", session)
		setIfNotEmpty(params, "currentVideoId", current)
		setIfNotEmpty(params, "cursor", cursor)
		setIfNotEmpty(params, "connectionType", fetchOpts.connectionType)
		if fetchOpts.bandwidth > 0 {
			params.Set("bandwidth", strconv.FormatFloat(fetchOpts.bandwidth, 'f', -1, 64))
		}
		if fetchOpts.latency > 0 {
			params.Set("latency", strconv.Itoa(fetchOpts.latency))
		}
		params.Set("avgViewTime", strconv.Itoa(fetchOpts.avgViewTime))
		params.Set("scrollVelocity", strconv.FormatFloat(fetchOpts.scrollVelocity, 'f', -1, 64))
		params.Set("quality", fetchOpts.quality)

		return fetchRecommendation(cmd.Context(), cmd.OutOrStdout(), apiURL, params)
	},
}

func init() {
	f := fetchCmd.Flags()
	f.String("session", "", "Session id (default anonymous)")
	f.String("current", "", "Video currently on screen")
	f.String("cursor", "", "Feed cursor")
	f.Float64Var(&fetchOpts.bandwidth, "bandwidth", 0, "Measured bandwidth in Mbps (0 = unknown)")
	f.IntVar(&fetchOpts.latency, "latency", 0, "Round-trip latency in ms (0 = unknown)")
	f.StringVar(&fetchOpts.connectionType, "connection", "", "Connection type: slow-2g, 2g, 3g, 4g, wifi")
	f.IntVar(&fetchOpts.avgViewTime, "view-time", 6000, "Average view time per video in ms")
	f.Float64Var(&fetchOpts.scrollVelocity, "velocity", 1.0, "Scroll velocity in videos per second")
	f.StringVar(&fetchOpts.quality, "quality", "auto", "Quality preference: auto, 480p, 720p")
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

type fetchResponse struct {
	Prefetch struct {
		VideoIDs      []string          `json:"videoIds"`
		QualityMap    map[string]string `json:"qualityMap"`
		EstimatedSize float64           `json:"estimatedSize"`
		Reasoning     map[string]string `json:"reasoning"`
	} `json:"prefetch"`
	Strategy struct {
		NetworkCondition string  `json:"networkCondition"`
		Bandwidth        float64 `json:"bandwidth"`
		BaseCount        int     `json:"baseCount"`
	} `json:"strategy"`
	Meta struct {
		ResponseTime     float64 `json:"responseTime"`
		RecommendationID string  `json:"recommendationId"`
	} `json:"meta"`
}

func fetchRecommendation(ctx context.Context, w io.Writer, baseURL string, params url.Values) error {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := getJSON(ctx, baseURL+"/api/v1/prefetch?"+params.Encode())
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Fprintln(w, string(body))
		return nil
	}

	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Fprintf(w, "\nRecommendation %s\n", resp.Meta.RecommendationID)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Network:     %s (%.2f Mbps)\n", resp.Strategy.NetworkCondition, resp.Strategy.Bandwidth)
	fmt.Fprintf(w, "Base count:  %d\n", resp.Strategy.BaseCount)
	for i, id := range resp.Prefetch.VideoIDs {
		fmt.Fprintf(w, "%2d. %s %s\n", i+1, id, resp.Prefetch.QualityMap[id])
	}
	fmt.Fprintf(w, "Estimated:   %.1f MB\n", resp.Prefetch.EstimatedSize)
	fmt.Fprintf(w, "Server time: %.2f ms\n\n", resp.Meta.ResponseTime)
	return nil
}

// getJSON performs a GET and returns the body of a 2xx response
func getJSON(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := telemetry.NewInstrumentedHTTPClient(10 * time.Second)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		if json.Unmarshal(body, &errResp) == nil {
			if msg, ok := errResp["message"].(string); ok {
				return nil, fmt.Errorf("API error: %s", msg)
			}
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return body, nil
}
