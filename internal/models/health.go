package models

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-day key used across results.
const DateLayout = "2006-01-02"

// TimeRange is a closed interval of instants.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that start does not come after end.
func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: range start %s after end %s", ErrInvalidArgument,
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls within the range, inclusive of both ends.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// RawSample is a single reading returned by a sample reader. For
// MetricSleepSegment the value holds the stage code.
type RawSample struct {
	Kind   MetricKind `json:"kind"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Value  float64    `json:"value"`
	Source string     `json:"source,omitempty"`
}

// Validate reports ErrMalformedSample when the reading cannot be aggregated.
func (s RawSample) Validate() error {
	switch {
	case s.Start.IsZero() || s.End.IsZero():
		return fmt.Errorf("%w: %s sample missing timestamps", ErrMalformedSample, s.Kind)
	case s.End.Before(s.Start):
		return fmt.Errorf("%w: %s sample ends before it starts", ErrMalformedSample, s.Kind)
	case math.IsNaN(s.Value) || math.IsInf(s.Value, 0):
		return fmt.Errorf("%w: %s sample value is not finite", ErrMalformedSample, s.Kind)
	case s.Kind.Additive() && s.Value < 0:
		return fmt.Errorf("%w: negative %s value %g", ErrMalformedSample, s.Kind, s.Value)
	case s.Kind == MetricSleepSegment && s.Value != math.Trunc(s.Value):
		return fmt.Errorf("%w: sleep stage code %g is not an integer", ErrMalformedSample, s.Value)
	}
	return nil
}

// StageCode returns the sleep stage code carried by a sleep segment sample.
func (s RawSample) StageCode() int {
	return int(s.Value)
}

// HourlyMetric is the total for one hour of a day.
type HourlyMetric struct {
	Hour  int     `json:"hour"`
	Total float64 `json:"total"`
}

// DailyMetric is the total for one calendar day plus its sparse hourly detail.
// Total comes from a separate daily query and is not the sum of Hourly.
type DailyMetric struct {
	Date   string         `json:"date"`
	Total  float64        `json:"total"`
	Hourly []HourlyMetric `json:"hourly"`
}

// SleepSegment is one classified sleep reading.
type SleepSegment struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int64      `json:"durationMinutes"`
	Stage           SleepStage `json:"stage"`
}

// NightlySleepSummary aggregates the segments that start on one calendar date.
type NightlySleepSummary struct {
	Date              string         `json:"date"`
	Bedtime           time.Time      `json:"bedtime"`
	WakeTime          time.Time      `json:"wakeTime"`
	TotalSleepMinutes int64          `json:"totalSleepMinutes"`
	LightMinutes      int64          `json:"lightMinutes"`
	DeepMinutes       int64          `json:"deepMinutes"`
	REMMinutes        int64          `json:"remMinutes"`
	Segments          []SleepSegment `json:"segments"`
}

// FitnessSnapshot is a single-shot summary over one query window.
// SleepDurationMinutes covers every sleep segment, awake time included.
type FitnessSnapshot struct {
	Steps                int64   `json:"steps"`
	Distance             float64 `json:"distance"`
	Calories             float64 `json:"calories"`
	HeartRate            float64 `json:"heartRate"`
	Weight               float64 `json:"weight"`
	Height               float64 `json:"height"`
	SleepDurationMinutes int64   `json:"sleepDurationMinutes"`
}
