package models

import (
	"fmt"
	"strings"
)

// MetricKind identifies the type of a raw health reading.
type MetricKind int

const (
	MetricSteps MetricKind = iota + 1
	MetricDistance
	MetricCalories
	MetricHeartRate
	MetricWeight
	MetricHeight
	MetricSleepSegment
)

var metricKindNames = map[MetricKind]string{
	MetricSteps:        "STEPS",
	MetricDistance:     "DISTANCE",
	MetricCalories:     "CALORIES",
	MetricHeartRate:    "HEART_RATE",
	MetricWeight:       "WEIGHT",
	MetricHeight:       "HEIGHT",
	MetricSleepSegment: "SLEEP_SEGMENT",
}

// AllMetricKinds lists every kind in declaration order.
var AllMetricKinds = []MetricKind{
	MetricSteps, MetricDistance, MetricCalories, MetricHeartRate,
	MetricWeight, MetricHeight, MetricSleepSegment,
}

func (k MetricKind) String() string {
	if name, ok := metricKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MetricKind(%d)", int(k))
}

// Additive reports whether readings of this kind are summed within a bucket.
func (k MetricKind) Additive() bool {
	return k == MetricSteps || k == MetricDistance || k == MetricCalories
}

// ParseMetricKind parses a kind name case-insensitively. Both "HEART_RATE"
// and "heart-rate" are accepted.
func ParseMetricKind(s string) (MetricKind, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for k, name := range metricKindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown metric kind %q", ErrInvalidArgument, s)
}

func (k MetricKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MetricKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMetricKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// BucketWidth is the width of the aggregation buckets requested from a reader.
type BucketWidth int

const (
	BucketNone BucketWidth = iota
	BucketHour
	BucketDay
)

func (w BucketWidth) String() string {
	switch w {
	case BucketHour:
		return "hour"
	case BucketDay:
		return "day"
	default:
		return "none"
	}
}
