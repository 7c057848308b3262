package aggregate

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/claude/fitbridge/internal/models"
	"github.com/google/go-cmp/cmp"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func steps(start time.Time, d time.Duration, v float64) models.RawSample {
	return models.RawSample{Kind: models.MetricSteps, Start: start, End: start.Add(d), Value: v}
}

func threeDays() models.TimeRange {
	return models.TimeRange{Start: at(1, 0, 0), End: time.Date(2024, 1, 3, 23, 59, 59, 999_000_000, time.UTC)}
}

// TestDailyDense verifies one entry per calendar day, zero-filled, even when
// no samples exist for most days.
func TestDailyDense(t *testing.T) {
	a := New(time.UTC, testLog)
	got := a.Daily([]models.RawSample{
		steps(at(2, 9, 0), time.Hour, 300),
		steps(at(2, 18, 0), time.Hour, 200),
	}, threeDays())

	want := []models.DailyMetric{
		{Date: "2024-01-01", Total: 0, Hourly: []models.HourlyMetric{}},
		{Date: "2024-01-02", Total: 500, Hourly: []models.HourlyMetric{}},
		{Date: "2024-01-03", Total: 0, Hourly: []models.HourlyMetric{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Daily mismatch (-want +got):\n%s", diff)
	}
}

// TestDailyLocalBoundaries verifies that buckets follow the local calendar,
// not UTC.
func TestDailyLocalBoundaries(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	a := New(loc, testLog)
	r := models.TimeRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 2, 23, 59, 59, 0, loc),
	}
	// 03:00 UTC on Jan 2 is 22:00 on Jan 1 locally.
	got := a.Daily([]models.RawSample{steps(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), time.Minute, 42)}, r)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Total != 42 || got[1].Total != 0 {
		t.Errorf("totals = [%v %v], want [42 0]", got[0].Total, got[1].Total)
	}
}

// TestDailySkipsMalformedAndOutOfRange verifies that bad readings only
// reduce completeness.
func TestDailySkipsMalformedAndOutOfRange(t *testing.T) {
	a := New(time.UTC, testLog)
	got := a.Daily([]models.RawSample{
		steps(at(1, 10, 0), time.Hour, 100),
		steps(at(1, 11, 0), time.Hour, math.NaN()),
		steps(at(1, 12, 0), -time.Hour, 50),
		steps(at(9, 12, 0), time.Hour, 9999),
	}, threeDays())
	if got[0].Total != 100 {
		t.Errorf("2024-01-01 total = %v, want 100", got[0].Total)
	}
	for _, d := range got[1:] {
		if d.Total != 0 {
			t.Errorf("%s total = %v, want 0", d.Date, d.Total)
		}
	}
}

// TestHourlySparse verifies that hourly output omits zero hours and sorts
// ascending.
func TestHourlySparse(t *testing.T) {
	a := New(time.UTC, testLog)
	got := a.Hourly([]models.RawSample{
		steps(at(2, 17, 0), time.Minute, 40),
		steps(at(2, 8, 0), time.Minute, 300),
		steps(at(2, 8, 30), time.Minute, 200),
		steps(at(2, 12, 0), time.Minute, 0),
		steps(at(3, 6, 0), time.Minute, 10),
	}, threeDays())

	want := map[string][]models.HourlyMetric{
		"2024-01-02": {{Hour: 8, Total: 500}, {Hour: 17, Total: 40}},
		"2024-01-03": {{Hour: 6, Total: 10}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Hourly mismatch (-want +got):\n%s", diff)
	}
	for date, hours := range got {
		for _, h := range hours {
			if h.Total == 0 {
				t.Errorf("%s hour %d has zero total", date, h.Hour)
			}
		}
	}
}

// TestMergeScenario verifies the daily/hourly merge when only one day has
// hourly detail: daily buckets [0, 500, 1200], hourly only hour 8 on the 2nd.
func TestMergeScenario(t *testing.T) {
	a := New(time.UTC, testLog)
	r := threeDays()
	daily := a.Daily([]models.RawSample{
		steps(at(1, 0, 0), 24*time.Hour-time.Second, 0),
		steps(at(2, 0, 0), 24*time.Hour-time.Second, 500),
		steps(at(3, 0, 0), 24*time.Hour-time.Second, 1200),
	}, r)
	hourly := a.Hourly([]models.RawSample{steps(at(2, 8, 0), time.Hour, 500)}, r)

	got := Merge(daily, hourly)
	want := []models.DailyMetric{
		{Date: "2024-01-01", Total: 0, Hourly: []models.HourlyMetric{}},
		{Date: "2024-01-02", Total: 500, Hourly: []models.HourlyMetric{{Hour: 8, Total: 500}}},
		{Date: "2024-01-03", Total: 1200, Hourly: []models.HourlyMetric{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
}

// TestMergeKeepsIndependentTotals verifies daily totals are not replaced by
// hourly sums even when they disagree.
func TestMergeKeepsIndependentTotals(t *testing.T) {
	daily := []models.DailyMetric{{Date: "2024-01-02", Total: 1000}}
	hourly := map[string][]models.HourlyMetric{
		"2024-01-02": {{Hour: 9, Total: 10}},
		"2024-01-05": {{Hour: 1, Total: 3}},
	}
	got := Merge(daily, hourly)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Total != 1000 {
		t.Errorf("total = %v, want 1000", got[0].Total)
	}
	if got[1].Date != "2024-01-05" || got[1].Total != 0 || len(got[1].Hourly) != 1 {
		t.Errorf("extra day = %+v, want zero-total entry with one hour", got[1])
	}
}

// TestMeanLatestSum verifies the window-wide reductions.
func TestMeanLatestSum(t *testing.T) {
	a := New(time.UTC, testLog)
	r := threeDays()
	hr := []models.RawSample{
		{Kind: models.MetricHeartRate, Start: at(1, 8, 0), End: at(1, 8, 0), Value: 60},
		{Kind: models.MetricHeartRate, Start: at(2, 8, 0), End: at(2, 8, 0), Value: 70},
		{Kind: models.MetricHeartRate, Start: at(3, 8, 0), End: at(3, 8, 0), Value: 80},
	}
	if got := a.Mean(hr, r); got != 70 {
		t.Errorf("Mean = %v, want 70", got)
	}
	if got := a.Mean(nil, r); got != 0 {
		t.Errorf("Mean(empty) = %v, want 0", got)
	}

	weights := []models.RawSample{
		{Kind: models.MetricWeight, Start: at(1, 7, 0), End: at(3, 7, 0), Value: 81},
		{Kind: models.MetricWeight, Start: at(2, 7, 0), End: at(2, 7, 0), Value: 80},
	}
	latest, ok := a.Latest(weights, r)
	if !ok || latest.Value != 81 {
		t.Errorf("Latest = %v (ok=%v), want 81 by end time", latest.Value, ok)
	}
	if _, ok := a.Latest(nil, r); ok {
		t.Error("Latest(empty) reported a value")
	}

	if got := a.Sum([]models.RawSample{steps(at(1, 1, 0), time.Minute, 1.5), steps(at(2, 1, 0), time.Minute, 2.5)}, r); got != 4 {
		t.Errorf("Sum = %v, want 4", got)
	}
}

// TestSnapshot verifies the reductions are routed per kind.
func TestSnapshot(t *testing.T) {
	a := New(time.UTC, testLog)
	r := threeDays()
	byKind := ByKind([]models.RawSample{
		steps(at(1, 9, 0), time.Hour, 1000.4),
		steps(at(2, 9, 0), time.Hour, 2000.3),
		{Kind: models.MetricDistance, Start: at(1, 9, 0), End: at(1, 10, 0), Value: 1.25},
		{Kind: models.MetricCalories, Start: at(1, 9, 0), End: at(1, 10, 0), Value: 320},
		{Kind: models.MetricHeartRate, Start: at(1, 9, 0), End: at(1, 9, 0), Value: 64},
		{Kind: models.MetricHeartRate, Start: at(1, 10, 0), End: at(1, 10, 0), Value: 66},
		{Kind: models.MetricWeight, Start: at(2, 7, 0), End: at(2, 7, 0), Value: 79.5},
		{Kind: models.MetricHeight, Start: at(1, 7, 0), End: at(1, 7, 0), Value: 1.82},
	})

	got := a.Snapshot(byKind, r, 420)
	want := models.FitnessSnapshot{
		Steps: 3001, Distance: 1.25, Calories: 320, HeartRate: 65,
		Weight: 79.5, Height: 1.82, SleepDurationMinutes: 420,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}
