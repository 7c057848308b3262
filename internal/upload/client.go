package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRejected is returned when the backend refuses a batch with a 4xx status.
var ErrRejected = errors.New("backend rejected records")

// Client sends health-data records to the backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the backend at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    time.Second,
	}
}

// SendHealthData POSTs records as one batch and returns how many the
// backend accepted. Transport errors and 5xx responses are retried with
// exponential backoff under one idempotency key; 4xx fails immediately.
func (c *Client) SendHealthData(ctx context.Context, records []Record) (int, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("marshaling records: %w", err)
	}
	key := uuid.NewString()

	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		accepted, retry, err := c.post(ctx, data, key)
		if err == nil {
			return accepted, nil
		}
		if !retry {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) post(ctx context.Context, data []byte, key string) (accepted int, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/health-data", bytes.NewReader(data))
	if err != nil {
		return 0, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, ctx.Err() == nil, fmt.Errorf("sending records: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return 0, true, fmt.Errorf("send failed (status %d): %s", resp.StatusCode, body)
	case resp.StatusCode >= 400:
		return 0, false, fmt.Errorf("%w (status %d): %s", ErrRejected, resp.StatusCode, body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var saved []json.RawMessage
	if err := json.Unmarshal(body, &saved); err != nil {
		return 0, false, fmt.Errorf("decoding response: %w", err)
	}
	return len(saved), false, nil
}
