package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/fitbridge/internal/format"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/sleep"
)

// HTTPClient implements DataSource by calling the FitBridge REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the pipeline runs on the remote server (accessed over Tailscale).
// The remote server authorizes with the API key, so the auth argument
// is ignored.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// statusError maps a REST error status back to the pipeline sentinel.
func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return models.ErrInvalidArgument
	case http.StatusUnauthorized:
		return models.ErrNotAuthenticated
	case http.StatusForbidden:
		return models.ErrPermissionDenied
	case http.StatusBadGateway:
		return models.ErrUpstreamRead
	default:
		return nil
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		if sentinel := statusError(resp.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, msg)
		}
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func daysParams(n int) url.Values {
	v := url.Values{}
	v.Set("days", strconv.Itoa(n))
	return v
}

func (c *HTTPClient) DetailedSteps(ctx context.Context, _ pipeline.AuthContext, numberOfDays int) ([]models.DailyMetric, error) {
	var days []models.DailyMetric
	if err := c.get(ctx, "/api/v1/steps", daysParams(numberOfDays), &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (c *HTTPClient) SleepAndTodaySteps(ctx context.Context, _ pipeline.AuthContext, numberOfDays int) (format.Document, error) {
	var doc format.Document
	if err := c.get(ctx, "/api/v1/summary", daysParams(numberOfDays), &doc); err != nil {
		return format.Document{}, err
	}
	return doc, nil
}

func (c *HTTPClient) SleepNights(ctx context.Context, _ pipeline.AuthContext, numberOfDays int) ([]models.NightlySleepSummary, error) {
	var nights []models.NightlySleepSummary
	if err := c.get(ctx, "/api/v1/sleep", daysParams(numberOfDays), &nights); err != nil {
		return nil, err
	}
	return nights, nil
}

func (c *HTTPClient) SleepConsistency(ctx context.Context, _ pipeline.AuthContext, numberOfDays int) (sleep.Consistency, error) {
	var cons sleep.Consistency
	if err := c.get(ctx, "/api/v1/sleep/consistency", daysParams(numberOfDays), &cons); err != nil {
		return sleep.Consistency{}, err
	}
	return cons, nil
}

func (c *HTTPClient) Snapshot(ctx context.Context, _ pipeline.AuthContext) (models.FitnessSnapshot, error) {
	var snap models.FitnessSnapshot
	if err := c.get(ctx, "/api/v1/fitness", nil, &snap); err != nil {
		return models.FitnessSnapshot{}, err
	}
	return snap, nil
}
