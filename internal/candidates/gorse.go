package candidates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nostrvine/backend/internal/metrics"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// GorseSource asks a Gorse recommender for the session's next videos.
// Gorse has no offset parameter, so the cursor offset is applied client-side.
type GorseSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGorseSource creates a Gorse REST candidate source.
// A nil client gets a traced client with a short timeout.
func NewGorseSource(baseURL, apiKey string, client *http.Client) *GorseSource {
	if client == nil {
		client = telemetry.NewInstrumentedHTTPClient(2 * time.Second)
	}
	return &GorseSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
	}
}

// Name identifies the source in metrics and cache keys
func (s *GorseSource) Name() string {
	return "gorse"
}

// gorseScore is an element of the non-personalized endpoints
type gorseScore struct {
	Id    string  `json:"Id"`
	Score float64 `json:"Score"`
}

// NextVideoIDs returns up to q.Limit recommended video ids after the cursor
func (s *GorseSource) NextVideoIDs(ctx context.Context, q prefetch.CandidateQuery) ([]string, error) {
	start := time.Now()
	ids, err := s.nextVideoIDs(ctx, q)
	metrics.RecordCandidateFetch(s.Name(), time.Since(start), err)
	return ids, err
}

func (s *GorseSource) nextVideoIDs(ctx context.Context, q prefetch.CandidateQuery) ([]string, error) {
	offset := ParseOffset(q.Cursor)
	if q.Limit <= 0 || offset > MaxFeedOffset {
		return []string{}, nil
	}

	// One extra item covers the current video being filtered out
	n := offset + q.Limit + 1

	var ids []string
	if q.SessionID == "" || q.SessionID == prefetch.DefaultSessionID {
		var scores []gorseScore
		if err := s.get(ctx, fmt.Sprintf("/api/popular?n=%d", n), &scores); err != nil {
			return nil, err
		}
		ids = make([]string, 0, len(scores))
		for _, sc := range scores {
			ids = append(ids, sc.Id)
		}
	} else {
		endpoint := fmt.Sprintf("/api/recommend/%s?n=%d", url.PathEscape(q.SessionID), n)
		if err := s.get(ctx, endpoint, &ids); err != nil {
			return nil, err
		}
	}

	if offset >= len(ids) {
		return []string{}, nil
	}
	ids = ids[offset:]

	page := make([]string, 0, q.Limit)
	for _, id := range ids {
		if id == "" || id == q.CurrentVideoID {
			continue
		}
		page = append(page, id)
		if len(page) == q.Limit {
			break
		}
	}
	return page, nil
}

// get makes a GET request to the Gorse API and decodes the JSON body into out
func (s *GorseSource) get(ctx context.Context, endpoint string, out interface{}) error {
	return s.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do sends body as JSON when non-nil and decodes the response into out when non-nil
func (s *GorseSource) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	span := trace.SpanFromContext(ctx)

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordGorseError(0)
		telemetry.RecordExternalCallError(span, err, 0)
		return fmt.Errorf("gorse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("gorse API error: status %d", resp.StatusCode)
		metrics.RecordGorseError(resp.StatusCode)
		telemetry.RecordExternalCallError(span, err, resp.StatusCode)
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gorse response: %w", err)
	}
	return nil
}

// Ping checks that the Gorse API answers its health endpoint
func (s *GorseSource) Ping(ctx context.Context) error {
	return s.get(ctx, "/api/health/ready", nil)
}
