package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/fitbridge/internal/format"
	"github.com/claude/fitbridge/internal/models"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Every request must carry the API key.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "key" {
			t.Errorf("X-API-Key = %q, want key", got)
		}
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestDetailedSteps verifies the days parameter and list decoding.
func TestDetailedSteps(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/steps": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("days"); got != "3" {
				t.Errorf("days=%q, want 3", got)
			}
			writeTestJSON(t, w, http.StatusOK, []models.DailyMetric{
				{Date: "2024-01-03", Total: 1200, Hourly: []models.HourlyMetric{{Hour: 9, Total: 1200}}},
			})
		},
	})
	defer ts.Close()

	days, err := NewHTTPClient(ts.URL, "key").DetailedSteps(context.Background(), nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0].Total != 1200 || days[0].Hourly[0].Hour != 9 {
		t.Errorf("days = %+v", days)
	}
}

// TestSleepAndTodaySteps verifies the document contract decodes intact.
func TestSleepAndTodaySteps(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/summary": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"todaySteps":{"date":"2024-01-03","steps":4200},"sleepData":[]}`))
		},
	})
	defer ts.Close()

	doc, err := NewHTTPClient(ts.URL, "key").SleepAndTodaySteps(context.Background(), nil, 7)
	if err != nil {
		t.Fatal(err)
	}
	want := format.TodaySteps{Date: "2024-01-03", Steps: 4200}
	if doc.TodaySteps != want {
		t.Errorf("todaySteps = %+v, want %+v", doc.TodaySteps, want)
	}
	if doc.SleepData == nil || len(doc.SleepData) != 0 {
		t.Errorf("sleepData = %v, want empty", doc.SleepData)
	}
}

// TestSnapshot verifies the snapshot path takes no days parameter.
func TestSnapshot(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/fitness": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				t.Errorf("query = %q, want none", r.URL.RawQuery)
			}
			writeTestJSON(t, w, http.StatusOK, models.FitnessSnapshot{Steps: 5000, HeartRate: 75})
		},
	})
	defer ts.Close()

	snap, err := NewHTTPClient(ts.URL, "key").Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Steps != 5000 || snap.HeartRate != 75 {
		t.Errorf("snapshot = %+v", snap)
	}
}

// TestHTTPClientErrors verifies REST statuses map back to sentinel errors.
func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, models.ErrInvalidArgument},
		{http.StatusUnauthorized, models.ErrNotAuthenticated},
		{http.StatusForbidden, models.ErrPermissionDenied},
		{http.StatusBadGateway, models.ErrUpstreamRead},
	}
	for _, tt := range tests {
		ts := newTestServer(t, map[string]http.HandlerFunc{
			"/api/v1/sleep": func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(t, w, tt.status, map[string]string{"error": "nope"})
			},
		})
		_, err := NewHTTPClient(ts.URL, "key").SleepNights(context.Background(), nil, 7)
		ts.Close()
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

// TestHTTPClientServerError verifies other statuses surface as plain errors.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sleep/consistency": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, "key").SleepConsistency(context.Background(), nil, 7)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, models.ErrUpstreamRead) {
		t.Errorf("err = %v, should not map to an upstream read failure", err)
	}
}
