package hae

import (
	"encoding/json"

	"github.com/claude/fitbridge/internal/models"
)

// Metric names used by Health Auto Export for the kinds we aggregate.
const (
	NameSteps    = "step_count"
	NameDistance = "walking_running_distance"
	NameCalories = "active_energy"
	NameHeart    = "heart_rate"
	NameWeight   = "weight_body_mass"
	NameHeight   = "height"
	NameSleep    = "sleep_analysis"
)

var kindByName = map[string]models.MetricKind{
	NameSteps:    models.MetricSteps,
	NameDistance: models.MetricDistance,
	NameCalories: models.MetricCalories,
	NameHeart:    models.MetricHeartRate,
	NameWeight:   models.MetricWeight,
	NameHeight:   models.MetricHeight,
	NameSleep:    models.MetricSleepSegment,
}

var nameByKind = func() map[models.MetricKind]string {
	m := make(map[models.MetricKind]string, len(kindByName))
	for name, k := range kindByName {
		m[k] = name
	}
	return m
}()

// KindForName returns the metric kind for an HAE metric name.
func KindForName(name string) (models.MetricKind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// NameForKind returns the HAE metric name for a kind.
func NameForKind(k models.MetricKind) (string, bool) {
	name, ok := nameByKind[k]
	return name, ok
}

// MetricShape describes the data point structure for a metric.
type MetricShape int

const (
	ShapeQty       MetricShape = iota // Standard: {"qty": N}
	ShapeMinAvgMax                    // Heart rate: {"Min": N, "Avg": N, "Max": N}
	ShapeSleepStage                   // Per-stage sleep: {"startDate", "endDate", "value"}
)

// DetectMetricShape returns the expected data point shape for a metric name.
func DetectMetricShape(name string) MetricShape {
	switch name {
	case NameHeart:
		return ShapeMinAvgMax
	case NameSleep:
		return ShapeSleepStage
	default:
		return ShapeQty
	}
}

// SleepFormat describes whether sleep data is aggregated or per-stage.
type SleepFormat int

const (
	SleepFormatAggregated   SleepFormat = iota // Has "totalSleep" field
	SleepFormatUnaggregated                    // Has "startDate" field
)

// DetectSleepFormat examines a raw JSON data point to determine if it's aggregated or unaggregated.
func DetectSleepFormat(raw json.RawMessage) SleepFormat {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return SleepFormatAggregated
	}
	if _, ok := probe["totalSleep"]; ok {
		return SleepFormatAggregated
	}
	if _, ok := probe["startDate"]; ok {
		return SleepFormatUnaggregated
	}
	return SleepFormatAggregated
}
