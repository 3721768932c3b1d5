package promclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/console/internal/telemetry"
)

// Client queries a Prometheus-compatible metrics backend
type Client struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// Config represents metrics backend client configuration
type Config struct {
	URL     string
	Timeout string
}

// Response represents a response from the metrics backend.
type Response struct {
	Status string `json:"status"`
	Data   Data   `json:"data"`
}

// Data represents the data section of a query response
type Data struct {
	ResultType string   `json:"resultType"`
	Result     []Result `json:"result"`
}

// Result represents a single series in a query response
type Result struct {
	Metric map[string]string `json:"metric"`
	Values [][]interface{}   `json:"values"`
	Value  []interface{}     `json:"value"`
}

// NewClient creates a new metrics backend client
func NewClient(logger *zap.Logger, config Config) (*Client, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration: %w", err)
	}

	return &Client{
		logger:  logger,
		baseURL: config.URL,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// QueryRange performs a range query against the metrics backend
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]Result, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", fmt.Sprintf("%.0fs", step.Seconds()))

	c.logger.Debug("Querying metrics backend",
		zap.String("query", query),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Duration("step", step))

	return c.do(ctx, "/api/v1/query_range", params)
}

// QueryInstant performs an instant query against the metrics backend
func (c *Client) QueryInstant(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("query", query)

	c.logger.Debug("Instant query against metrics backend", zap.String("query", query))

	return c.do(ctx, "/api/v1/query", params)
}

// do issues a query request and decodes the standard response envelope
func (c *Client) do(ctx context.Context, path string, params url.Values) ([]Result, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics backend URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics response: %w", err)
	}

	if response.Status != "success" {
		return nil, fmt.Errorf("metrics query failed: %s", response.Status)
	}

	return response.Data.Result, nil
}

// Healthy reports whether the metrics backend is reachable. It probes the
// Prometheus liveness endpoint first and falls back to a trivial instant
// query for backends that do not expose /-/healthy.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/-/healthy", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
		if resp.StatusCode != http.StatusNotFound {
			return false
		}
	}

	_, err = c.QueryInstant(ctx, "up")
	return err == nil
}

// CollapseSamples flattens range-query results into a single series, summing
// values that share a timestamp across result series. Output is sorted
// ascending. Malformed value pairs are skipped rather than failing the whole
// query.
func CollapseSamples(results []Result) telemetry.Series {
	byTimestamp := make(map[int64]float64)

	for _, result := range results {
		for _, pair := range result.Values {
			ts, value, ok := decodeValuePair(pair)
			if !ok {
				continue
			}
			byTimestamp[ts] += value
		}
	}

	series := make(telemetry.Series, 0, len(byTimestamp))
	for ts, value := range byTimestamp {
		series = append(series, telemetry.Sample{Timestamp: ts, Value: value})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp < series[j].Timestamp
	})

	return series
}

// FirstSample extracts the sample of the first series in an instant-query
// result.
func FirstSample(results []Result) (telemetry.Sample, bool) {
	for _, result := range results {
		if ts, value, ok := decodeValuePair(result.Value); ok {
			return telemetry.Sample{Timestamp: ts, Value: value}, true
		}
	}
	return telemetry.Sample{}, false
}

// decodeValuePair parses a [timestamp, "value"] pair from the wire format
func decodeValuePair(pair []interface{}) (int64, float64, bool) {
	if len(pair) != 2 {
		return 0, 0, false
	}

	ts, ok := pair[0].(float64)
	if !ok {
		return 0, 0, false
	}

	str, ok := pair[1].(string)
	if !ok {
		return 0, 0, false
	}

	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, 0, false
	}

	return int64(ts), value, true
}
