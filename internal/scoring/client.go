package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrRetrainThrottled is returned when the scoring service rejects a manual
// retrain because one was triggered too recently.
var ErrRetrainThrottled = errors.New("retrain throttled by scoring service")

// Client talks to the fraud-scoring service's operator API
type Client struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// Config represents scoring service client configuration
type Config struct {
	URL     string
	Timeout string
}

// DashboardStats is the scoring service's aggregate counter snapshot
type DashboardStats struct {
	TotalRequests   float64 `json:"total_requests"`
	RetrainTriggers float64 `json:"retrain_triggers"`
	ShadowRuns      float64 `json:"shadow_runs"`
	DriftScore      float64 `json:"drift_score"`
	ModelVersion    string  `json:"model_version"`
}

// ModelInfo describes the active model and its drift thresholds
type ModelInfo struct {
	Active ActiveModel  `json:"active"`
	Shadow *ShadowModel `json:"shadow,omitempty"`
}

// ActiveModel is the currently serving model
type ActiveModel struct {
	Version            string  `json:"version"`
	DriftThresholdSoft float64 `json:"drift_threshold_soft"`
	DriftThresholdHard float64 `json:"drift_threshold_hard"`
	Coverage           float64 `json:"coverage"`
	Alpha              float64 `json:"alpha"`
}

// ShadowModel is the optional shadow deployment
type ShadowModel struct {
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
}

// RetrainAck is the response to a manual retrain request
type RetrainAck struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

// NewClient creates a new scoring service client
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

// DashboardStats fetches the aggregate dashboard counters
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.get(ctx, "/dashboard/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ModelInfo fetches active and shadow model metadata
func (c *Client) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	var info ModelInfo
	if err := c.get(ctx, "/models/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TriggerRetrain asks the scoring service to queue a manual retrain
func (c *Client) TriggerRetrain(ctx context.Context) (*RetrainAck, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/retrain", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request retrain: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrRetrainThrottled, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrain request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ack RetrainAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal retrain response: %w", err)
	}

	c.logger.Info("Manual retrain queued", zap.String("modelVersion", ack.ModelVersion))
	return &ack, nil
}

// Healthy probes the scoring service liveness endpoint
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// get issues a GET request and decodes the JSON response into out
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query scoring service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoring service request %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal scoring response: %w", err)
	}

	return nil
}
