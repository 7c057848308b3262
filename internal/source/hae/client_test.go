package hae

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// startMockTCPServer starts a TCP server that answers each connection's
// request line with respond and then closes the connection. Returns the
// listener port and a function reporting the requests seen so far.
func startMockTCPServer(t *testing.T, respond func(req jsonRPCRequest) []byte) (int, func() []jsonRPCRequest) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	var mu sync.Mutex
	var seen []jsonRPCRequest

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
				line, err := bufio.NewReader(conn).ReadBytes('\n')
				if err != nil {
					return
				}
				var req jsonRPCRequest
				json.Unmarshal(line, &req) //nolint:errcheck
				mu.Lock()
				seen = append(seen, req)
				mu.Unlock()
				if resp := respond(req); resp != nil {
					conn.Write(resp) //nolint:errcheck
				}
			}(conn)
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return port, func() []jsonRPCRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]jsonRPCRequest(nil), seen...)
	}
}

func resultResponse(result string) []byte {
	b, _ := json.Marshal(jsonRPCResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(result)})
	return b
}

func newTestClient(port int) *Client {
	c := NewClient("127.0.0.1", port, 0, testLog)
	c.timeout = 5 * time.Second
	c.pollEvery = 10 * time.Millisecond
	return c
}

func arguments(req jsonRPCRequest) map[string]any {
	params, _ := req.Params.(map[string]any)
	args, _ := params["arguments"].(map[string]any)
	return args
}

// TestCallTool verifies that a successful JSON-RPC response returns the result.
func TestCallTool(t *testing.T) {
	port, seen := startMockTCPServer(t, func(jsonRPCRequest) []byte {
		return resultResponse(`{"data":{"metrics":[]}}`)
	})

	result, err := newTestClient(port).callTool(context.Background(), "health_metrics", map[string]any{
		"start": "2025-01-01 00:00:00 +0000",
	})
	if err != nil {
		t.Fatalf("callTool returned error: %v", err)
	}
	if string(result) != `{"data":{"metrics":[]}}` {
		t.Errorf("unexpected result: %s", result)
	}

	reqs := seen()
	if len(reqs) != 1 || reqs[0].Method != "callTool" || reqs[0].JSONRPC != "2.0" {
		t.Errorf("requests = %+v, want one callTool request", reqs)
	}
}

// TestCallToolError verifies that a JSON-RPC error response is surfaced
// and not retried.
func TestCallToolError(t *testing.T) {
	port, seen := startMockTCPServer(t, func(jsonRPCRequest) []byte {
		b, _ := json.Marshal(jsonRPCResponse{JSONRPC: "2.0", ID: 1, Error: &jsonRPCError{Code: -32600, Message: "Invalid request"}})
		return b
	})

	_, err := newTestClient(port).QueryMetricsWithRetry(context.Background(), time.Now().Add(-time.Hour), time.Now(), "step_count", false)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32600 {
		t.Fatalf("error = %v, want RPCError -32600", err)
	}
	if n := len(seen()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

// TestQueryMetricsRetriesEmptyResponse verifies that a dropped connection is
// retried after the server accepts connections again.
func TestQueryMetricsRetriesEmptyResponse(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	port, _ := startMockTCPServer(t, func(jsonRPCRequest) []byte {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil
		}
		return resultResponse(`{"data":{"metrics":[]}}`)
	})

	result, err := newTestClient(port).QueryMetricsWithRetry(context.Background(), time.Now().Add(-time.Hour), time.Now(), "step_count", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"data":{"metrics":[]}}` {
		t.Errorf("unexpected result: %s", result)
	}
}

// TestWaitForServerCancelled verifies that polling stops with the context.
func TestWaitForServerCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := newTestClient(port)
	c.pollEvery = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.waitForServer(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

// TestReaderRead verifies one query per kind, the aggregate flag, and the
// conversion to raw samples.
func TestReaderRead(t *testing.T) {
	port, seen := startMockTCPServer(t, func(req jsonRPCRequest) []byte {
		switch arguments(req)["metrics"] {
		case "step_count":
			return resultResponse(`{"data":{"metrics":[{"name":"step_count","units":"count","data":[
				{"date":"2024-01-02 00:00:00 +0000","qty":500},
				{"date":"2024-01-03 00:00:00 +0000","qty":1200}]}]}}`)
		case "sleep_analysis":
			return resultResponse(`{"data":{"metrics":[{"name":"sleep_analysis","units":"hr","data":[
				{"startDate":"2024-01-02 00:30:00 +0000","endDate":"2024-01-02 06:30:00 +0000","value":"Deep","qty":6}]}]}}`)
		}
		return resultResponse(`null`)
	})

	r := NewReader(newTestClient(port), testLog)
	tr := models.TimeRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC),
	}
	samples, err := r.Read(context.Background(),
		[]models.MetricKind{models.MetricSteps, models.MetricSleepSegment, models.MetricWeight}, tr, models.BucketDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(samples))
	}
	if samples[1].Value != 1200 || samples[2].Kind != models.MetricSleepSegment || samples[2].StageCode() != models.StageCodeDeep {
		t.Errorf("samples = %+v", samples)
	}

	reqs := seen()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	for _, req := range reqs {
		args := arguments(req)
		wantAggregate := args["metrics"] == "step_count"
		if args["aggregate"] != wantAggregate {
			t.Errorf("%v aggregate = %v, want %v", args["metrics"], args["aggregate"], wantAggregate)
		}
		if args["start"] != "2024-01-01 00:00:00 +0000" {
			t.Errorf("start = %v", args["start"])
		}
	}
}

// TestReaderReadFailure verifies that a query failure fails the read.
func TestReaderReadFailure(t *testing.T) {
	port, _ := startMockTCPServer(t, func(jsonRPCRequest) []byte {
		b, _ := json.Marshal(jsonRPCResponse{JSONRPC: "2.0", ID: 1, Error: &jsonRPCError{Code: -32000, Message: "Health data unavailable"}})
		return b
	})
	r := NewReader(newTestClient(port), testLog)
	tr := models.TimeRange{Start: time.Now().Add(-time.Hour), End: time.Now()}
	if _, err := r.Read(context.Background(), []models.MetricKind{models.MetricHeartRate}, tr, models.BucketNone); err == nil {
		t.Error("expected error")
	}
}
