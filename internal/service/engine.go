package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
)

// ErrQuotaExceeded marks an AI generation attempt that ran into the per-user
// quota. It is a rendered state, not a failure of the request.
var ErrQuotaExceeded = errors.New("ai generation quota exceeded")

// EngineClient talks to the recommendation engine service. The engine owns
// the recommendation algorithm; this client only moves its opaque results.
type EngineClient struct {
	baseURL string
	http    *http.Client
}

func NewEngineClient() *EngineClient {
	url := os.Getenv("RECS_ENGINE_URL")
	if url == "" {
		url = "http://localhost:8100"
	}
	return &EngineClient{
		baseURL: url,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type recommendationListResponse struct {
	Items []model.Recommendation `json:"items"`
}

type aiInsightsResponse struct {
	Picks         []model.Recommendation `json:"picks"`
	Strategy      []model.Recommendation `json:"strategy"`
	Gaps          []model.Recommendation `json:"gaps"`
	QuotaExceeded bool                   `json:"quota_exceeded"`
}

func (e *EngineClient) DashboardPicks(ctx context.Context, userID string) ([]model.Recommendation, error) {
	resp, err := call[recommendationListResponse](ctx, e, http.MethodGet, "/recommendations/dashboard", userID, nil)
	if err != nil {
		return nil, err
	}
	return filterKnownKinds(resp.Items), nil
}

func (e *EngineClient) SimilarContent(ctx context.Context, userID string, force bool) ([]model.Recommendation, error) {
	path := "/recommendations/similar"
	if force {
		path += "?force=1"
	}
	resp, err := call[recommendationListResponse](ctx, e, http.MethodGet, path, userID, nil)
	if err != nil {
		return nil, err
	}
	return filterKnownKinds(resp.Items), nil
}

// TriggerRecompute asks the engine to rebuild its model for the user. The
// call blocks until the recomputation is acknowledged.
func (e *EngineClient) TriggerRecompute(ctx context.Context, userID string) error {
	_, err := call[struct{}](ctx, e, http.MethodPost, "/recommendations/recompute", userID, map[string]any{})
	return err
}

func (e *EngineClient) GenerateAIInsights(ctx context.Context, userID string, force bool) (*model.AIInsights, error) {
	resp, err := call[aiInsightsResponse](ctx, e, http.MethodPost, "/ai-insights/generate", userID, map[string]any{
		"force": force,
	})
	if err != nil {
		return nil, err
	}
	if resp.QuotaExceeded {
		return nil, ErrQuotaExceeded
	}
	return &model.AIInsights{
		Picks:    filterKnownKinds(resp.Picks),
		Strategy: filterKnownKinds(resp.Strategy),
		Gaps:     filterKnownKinds(resp.Gaps),
	}, nil
}

// filterKnownKinds drops variants this version of the API does not know,
// so an engine rollout cannot break decoding of the rest of a payload.
func filterKnownKinds(items []model.Recommendation) []model.Recommendation {
	out := items[:0]
	for _, it := range items {
		if model.ValidRecommendationKind(it.Kind) {
			out = append(out, it)
		}
	}
	return out
}

func call[T any](ctx context.Context, e *EngineClient, method, path, userID string, body any) (*T, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", userID)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("engine %s: status %d", path, resp.StatusCode)
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
