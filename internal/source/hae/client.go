// Package hae reads raw samples from a Health Auto Export TCP server.
package hae

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client connects to the Health Auto Export TCP server (JSON-RPC 2.0).
// Each call opens a new TCP connection; the server closes the socket after
// sending the response.
type Client struct {
	addr    string
	timeout time.Duration
	limiter *rate.Limiter
	dialer  net.Dialer
	log     *slog.Logger

	maxRetries int
	pollEvery  time.Duration
	pollTries  int
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is a JSON-RPC error returned by the server. It is not retried.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("HAE error %d: %s", e.Code, e.Message)
}

// HAE date format: yyyy-MM-dd HH:mm:ss Z
const haeDateFormat = "2006-01-02 15:04:05 -0700"

// NewClient creates a client for the HAE TCP server. Calls are spaced to at
// most requestsPerSecond; zero or less disables the limit.
func NewClient(host string, port int, requestsPerSecond float64, log *slog.Logger) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		timeout:    120 * time.Second,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
		maxRetries: 3,
		pollEvery:  3 * time.Second,
		pollTries:  10,
	}
}

// QueryMetrics queries health_metrics for a time range. metrics is a
// comma-separated filter (empty string = all metrics).
func (c *Client) QueryMetrics(ctx context.Context, start, end time.Time, metrics string, aggregate bool) (json.RawMessage, error) {
	args := map[string]any{
		"start":     start.Format(haeDateFormat),
		"end":       end.Format(haeDateFormat),
		"aggregate": aggregate,
	}
	if metrics != "" {
		args["metrics"] = metrics
	}
	return c.callTool(ctx, "health_metrics", args)
}

// QueryMetricsWithRetry wraps QueryMetrics with retry logic for server crashes.
func (c *Client) QueryMetricsWithRetry(ctx context.Context, start, end time.Time, metrics string, aggregate bool) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Info("retrying metric query", "metric", metrics, "attempt", attempt+1)
			if err := c.waitForServer(ctx); err != nil {
				return nil, err
			}
		}
		result, err := c.QueryMetrics(ctx, start, end, metrics, aggregate)
		if err == nil {
			return result, nil
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		c.log.Warn("query failed, will retry", "metric", metrics, "error", err)
	}
	return nil, lastErr
}

// callTool sends a JSON-RPC callTool request and returns the result.
func (c *Client) callTool(ctx context.Context, toolName string, args map[string]any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	reqData, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "callTool",
		Params:  callToolParams{Name: toolName, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close() //nolint:errcheck

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// HAE server uses newline-delimited JSON-RPC framing.
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// The server closes the connection after the response, so read until EOF.
	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(respData) == 0 {
		return nil, fmt.Errorf("empty response from %s", c.addr)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.Error != nil {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

// waitForServer polls the HAE server until it accepts connections.
func (c *Client) waitForServer(ctx context.Context) error {
	for i := 0; i < c.pollTries; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
		cancel()
		if err == nil {
			conn.Close() //nolint:errcheck
			return nil
		}
		c.log.Info("waiting for HAE server to come back...", "attempt", i+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
	return fmt.Errorf("server at %s did not recover after crash", c.addr)
}
