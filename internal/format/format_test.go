package format

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/claude/fitbridge/internal/models"
	"github.com/google/go-cmp/cmp"
)

func sampleNight() models.NightlySleepSummary {
	at := func(h, m int) time.Time { return time.Date(2024, 1, 2, h, m, 0, 0, time.UTC) }
	return models.NightlySleepSummary{
		Date:              "2024-01-02",
		Bedtime:           at(0, 30),
		WakeTime:          at(7, 0),
		TotalSleepMinutes: 390,
		LightMinutes:      30,
		DeepMinutes:       360,
		Segments: []models.SleepSegment{
			{Start: at(0, 30), End: at(6, 30), DurationMinutes: 360, Stage: models.SleepStageDeep},
			{Start: at(6, 30), End: at(7, 0), DurationMinutes: 30, Stage: models.SleepStageLight},
		},
	}
}

// TestHours verifies one-decimal formatting with half-up rounding.
func TestHours(t *testing.T) {
	tests := []struct {
		minutes int64
		want    string
	}{
		{0, "0.0"},
		{2, "0.0"},
		{3, "0.1"},
		{9, "0.2"},
		{15, "0.3"},
		{45, "0.8"},
		{60, "1.0"},
		{390, "6.5"},
		{450, "7.5"},
		{479, "8.0"},
		{1234, "20.6"},
	}
	for _, tt := range tests {
		if got := Hours(tt.minutes); got != tt.want {
			t.Errorf("Hours(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

// TestDocumentEmptySleep verifies that missing sleep data still serializes
// sleepData as an empty array.
func TestDocumentEmptySleep(t *testing.T) {
	doc := NewFormatter(time.UTC).Document(TodaySteps{Date: "2024-01-02", Steps: 4200}, nil)
	data, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := `{
  "todaySteps": {
    "date": "2024-01-02",
    "steps": 4200
  },
  "sleepData": []
}`
	if string(data) != want {
		t.Errorf("JSON =\n%s\nwant\n%s", data, want)
	}
}

// TestDocumentShape verifies every field name and value of a night.
func TestDocumentShape(t *testing.T) {
	doc := NewFormatter(time.UTC).Document(TodaySteps{Date: "2024-01-02", Steps: 10}, []models.NightlySleepSummary{sampleNight()})
	data, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	night := raw["sleepData"].([]any)[0].(map[string]any)
	wantNight := map[string]any{
		"date":              "2024-01-02",
		"bedtime":           "00:30:00",
		"wakeTime":          "07:00:00",
		"totalSleepMinutes": float64(390),
		"totalSleepHours":   "6.5",
		"lightSleepMinutes": float64(30),
		"deepSleepMinutes":  float64(360),
		"remSleepMinutes":   float64(0),
	}
	for k, want := range wantNight {
		if night[k] != want {
			t.Errorf("%s = %v, want %v", k, night[k], want)
		}
	}

	segment := night["segments"].([]any)[0].(map[string]any)
	wantSegment := map[string]any{
		"startTime":       "00:30:00",
		"endTime":         "06:30:00",
		"startTimestamp":  float64(1704155400000),
		"endTimestamp":    float64(1704177000000),
		"durationMinutes": float64(360),
		"sleepStage":      "DEEP",
	}
	if diff := cmp.Diff(wantSegment, segment); diff != "" {
		t.Errorf("segment mismatch (-want +got):\n%s", diff)
	}
}

// TestDocumentLocalTimes verifies times of day are rendered in the
// formatter's location while timestamps stay absolute.
func TestDocumentLocalTimes(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	doc := NewFormatter(loc).Document(TodaySteps{}, []models.NightlySleepSummary{sampleNight()})
	n := doc.SleepData[0]
	if n.Bedtime != "01:30:00" || n.WakeTime != "08:00:00" {
		t.Errorf("bedtime/wakeTime = %s/%s, want 01:30:00/08:00:00", n.Bedtime, n.WakeTime)
	}
	if n.Segments[0].StartTimestamp != 1704155400000 {
		t.Errorf("startTimestamp = %d, want 1704155400000", n.Segments[0].StartTimestamp)
	}
}

// TestDocumentRoundTrip verifies that formatting and re-parsing keeps the
// totals, stage buckets and segment count.
func TestDocumentRoundTrip(t *testing.T) {
	second := sampleNight()
	second.Date = "2024-01-05"
	doc := NewFormatter(time.UTC).Document(TodaySteps{Date: "2024-01-05", Steps: 1}, []models.NightlySleepSummary{sampleNight(), second})

	data, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decoding document: %v", err)
	}
	if diff := cmp.Diff(doc, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if back.SleepData[0].Date != "2024-01-05" {
		t.Errorf("first night = %s, want newest first", back.SleepData[0].Date)
	}
	again, _ := back.JSON()
	if string(again) != string(data) {
		t.Error("second serialization differs from the first")
	}
}

// TestStepList verifies descending order and non-nil hourly sequences
// without touching the input.
func TestStepList(t *testing.T) {
	in := []models.DailyMetric{
		{Date: "2024-01-01", Total: 1},
		{Date: "2024-01-03", Total: 3, Hourly: []models.HourlyMetric{{Hour: 8, Total: 3}}},
		{Date: "2024-01-02", Total: 2},
	}
	got := StepList(in)
	want := []models.DailyMetric{
		{Date: "2024-01-03", Total: 3, Hourly: []models.HourlyMetric{{Hour: 8, Total: 3}}},
		{Date: "2024-01-02", Total: 2, Hourly: []models.HourlyMetric{}},
		{Date: "2024-01-01", Total: 1, Hourly: []models.HourlyMetric{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StepList mismatch (-want +got):\n%s", diff)
	}
	if in[0].Date != "2024-01-01" || in[0].Hourly != nil {
		t.Error("input was modified")
	}

	data, _ := json.Marshal(StepList(nil))
	if string(data) != "[]" {
		t.Errorf("StepList(nil) JSON = %s, want []", data)
	}
}
