package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
)

// Payload keys of the construction work-item corpus.
const (
	payloadRateCode   = "rate_code"
	payloadDepartment = "department_name"
	payloadPrice      = "price_est_median"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search runs a filtered nearest-neighbour query. Results keep the
// descending-score order returned by Qdrant.
func (c *Client) Search(
	ctx context.Context,
	collection string,
	queryVector []float32,
	limit int,
	filter domain.WorkItemFilter,
) ([]domain.WorkItem, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if must := buildMust(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.WorkItem, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		item := workItemFromPayload(r.Payload)
		item.Score = r.Score
		out = append(out, item)
	}
	return out, nil
}

// GetByRateCode scrolls the collection for the point with the given rate code.
func (c *Client) GetByRateCode(ctx context.Context, collection, rateCode string) (domain.WorkItem, error) {
	reqBody := map[string]any{
		"limit":        1,
		"with_payload": true,
		"with_vector":  false,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": payloadRateCode, "match": map[string]any{"value": rateCode}},
			},
		},
	}

	var scrollResp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", collection)
	if err := c.do(ctx, http.MethodPost, path, reqBody, &scrollResp, "scroll"); err != nil {
		return domain.WorkItem{}, err
	}
	if len(scrollResp.Result.Points) == 0 {
		return domain.WorkItem{}, domain.WrapError(domain.ErrNotFound, "qdrant scroll", fmt.Errorf("rate code %q not found", rateCode))
	}
	item := workItemFromPayload(scrollResp.Result.Points[0].Payload)
	item.Score = 1
	return item, nil
}

// CollectionInfo returns the point count and status of a collection.
func (c *Client) CollectionInfo(ctx context.Context, collection string) (int64, string, error) {
	var infoResp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+collection, nil, &infoResp, "collection_info"); err != nil {
		return 0, "", err
	}
	return infoResp.Result.PointsCount, infoResp.Result.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	call := func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, payload, out, operation)
	}
	err := c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	return wrapKind("qdrant "+operation, err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func buildMust(filter domain.WorkItemFilter) []map[string]any {
	must := make([]map[string]any, 0, 2)
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		must = append(must, map[string]any{
			"key":   payloadDepartment,
			"match": map[string]any{"value": dept},
		})
	}
	if filter.PriceMin != nil || filter.PriceMax != nil {
		rng := map[string]any{}
		if filter.PriceMin != nil {
			rng["gte"] = *filter.PriceMin
		}
		if filter.PriceMax != nil {
			rng["lte"] = *filter.PriceMax
		}
		must = append(must, map[string]any{
			"key":   payloadPrice,
			"range": rng,
		})
	}
	return must
}

func workItemFromPayload(payload map[string]any) domain.WorkItem {
	return domain.WorkItem{
		RateCode:    firstString(payload, payloadRateCode, "code"),
		Name:        firstString(payload, "rate_original_name", "rate_name", "name"),
		Unit:        firstString(payload, "rate_unit", "unit"),
		PriceMedian: getFloatPayload(payload, payloadPrice),
		PriceMin:    getFloatPayload(payload, "price_est_min"),
		PriceMax:    getFloatPayload(payload, "price_est_max"),
		LaborHours:  valueOrZero(getFloatPayload(payload, "labor_hours")),
		Department:  firstString(payload, payloadDepartment, "department"),
		Category:    firstString(payload, "category_type", "category"),
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := getStringPayload(payload, key); s != "" {
			return s
		}
	}
	return ""
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getFloatPayload(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
