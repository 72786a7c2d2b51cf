package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantClient wraps HTTP calls to the Qdrant REST API.
// This avoids pulling in the gRPC client stack for the handful of
// operations the system actually needs.
type QdrantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// QdrantConfig holds configuration for a Qdrant connection.
type QdrantConfig struct {
	Host    string
	Port    int
	APIKey  string
	Timeout time.Duration
}

// DefaultQdrantConfig returns a Qdrant configuration with sensible defaults.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:    "localhost",
		Port:    6333,
		Timeout: 30 * time.Second,
	}
}

// Point is a vector plus payload, addressed by a UUID.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is a similarity search hit.
type ScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Record is a point returned by a scroll listing (no score).
type Record struct {
	ID      string                 `json:"id"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SearchParams bundles the optional knobs of a similarity search.
type SearchParams struct {
	Limit          int
	ScoreThreshold float64
	Filter         map[string]interface{}
}

// NewQdrantClient creates a new Qdrant REST client.
func NewQdrantClient(config QdrantConfig) *QdrantClient {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 6333
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &QdrantClient{
		baseURL: fmt.Sprintf("http://%s:%d", config.Host, config.Port),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Healthz checks if Qdrant is reachable.
func (c *QdrantClient) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// CollectionExists checks whether a collection is present.
func (c *QdrantClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("get collection '%s' failed with status: %d", name, resp.StatusCode)
	}
}

// CreateCollection creates a collection with the given vector size and
// cosine distance.
func (c *QdrantClient) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	resp, err := c.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("create collection "+name, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// CountPoints returns the number of points matching the filter (nil filter
// counts the whole collection).
func (c *QdrantClient) CountPoints(ctx context.Context, collection string, filter map[string]interface{}) (int, error) {
	body := map[string]interface{}{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", collection), body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.statusError("count points in "+collection, resp)
	}

	var parsed struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return parsed.Result.Count, nil
}

// UpsertPoints inserts or overwrites points and waits for the write to be
// applied before returning.
func (c *QdrantClient) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": points}
	resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(fmt.Sprintf("upsert %d points into %s", len(points), collection), resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Search runs a similarity search and returns hits ranked by cosine score.
// The score threshold, when set, drops low-confidence hits before the limit
// is applied.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, params SearchParams) ([]ScoredPoint, error) {
	if params.Limit <= 0 {
		params.Limit = 10
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        params.Limit,
		"with_payload": true,
	}
	if params.ScoreThreshold > 0 {
		body["score_threshold"] = params.ScoreThreshold
	}
	if params.Filter != nil {
		body["filter"] = params.Filter
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", collection), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("search in "+collection, resp)
	}

	var parsed struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Result, nil
}

// ScrollPage lists one page of points matching the filter, starting at
// offset (nil for the first page). It returns the records together with the
// offset of the next page, which is nil once the collection is exhausted.
func (c *QdrantClient) ScrollPage(ctx context.Context, collection string, filter map[string]interface{}, limit int, offset interface{}) ([]Record, interface{}, error) {
	if limit <= 0 {
		limit = 1000
	}
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}
	if offset != nil {
		body["offset"] = offset
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", collection), body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.statusError("scroll in "+collection, resp)
	}

	var parsed struct {
		Result struct {
			Points         []Record    `json:"points"`
			NextPageOffset interface{} `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to decode scroll response: %w", err)
	}
	return parsed.Result.Points, parsed.Result.NextPageOffset, nil
}

// DeletePoints removes points by ID and waits for the write.
func (c *QdrantClient) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": ids}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", collection), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(fmt.Sprintf("delete %d points from %s", len(ids), collection), resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *QdrantClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *QdrantClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

func (c *QdrantClient) statusError(operation string, resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s failed (status %d): %s", operation, resp.StatusCode, string(data))
}
