package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HAETime handles the Health Auto Export date format: "2006-01-02 15:04:05 -0700"
// Also handles date-only format "2006-01-02" used in aggregated sleep data.
type HAETime struct {
	time.Time
}

const (
	HAETimeLayout     = "2006-01-02 15:04:05 -0700"
	HAEDateOnlyLayout = "2006-01-02"
)

func (t *HAETime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.Parse(s)
}

func (t HAETime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(HAETimeLayout))
}

// Parse parses a HAE time string, trying full datetime first, then date-only.
func (t *HAETime) Parse(s string) error {
	parsed, err := time.Parse(HAETimeLayout, s)
	if err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err2 := time.Parse(HAEDateOnlyLayout, s)
	if err2 == nil {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("cannot parse HAE time %q: %w", s, err)
}

// ParseHAETime parses a HAE time string into a time.Time.
func ParseHAETime(s string) (time.Time, error) {
	var t HAETime
	if err := t.Parse(s); err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}

// HAEPayload is the JSON structure returned by the Health Auto Export bridge
// and accepted by the ingest endpoint.
type HAEPayload struct {
	Data HAEData `json:"data"`
}

// HAEData contains the metric arrays. Workouts are not part of this payload.
type HAEData struct {
	Metrics []HAEMetric `json:"metrics"`
}

// HAEMetric is a single metric entry with name, units, and data points.
type HAEMetric struct {
	Name  string            `json:"name"`
	Units string            `json:"units"`
	Data  []json.RawMessage `json:"data"`
}

// HAEMetricDataPoint is a point reading with a qty.
type HAEMetricDataPoint struct {
	Date   HAETime `json:"date"`
	Qty    float64 `json:"qty"`
	Source string  `json:"source,omitempty"`
}

// Sample returns the reading as an instantaneous sample of kind.
func (dp HAEMetricDataPoint) Sample(kind MetricKind) RawSample {
	return RawSample{Kind: kind, Start: dp.Date.Time, End: dp.Date.Time, Value: dp.Qty, Source: dp.Source}
}

// HAEHeartRateDataPoint has Min/Avg/Max fields (capitalized in HAE JSON).
// Unsummarized exports send a plain qty instead.
type HAEHeartRateDataPoint struct {
	Date   HAETime  `json:"date"`
	Min    float64  `json:"Min"`
	Avg    float64  `json:"Avg"`
	Max    float64  `json:"Max"`
	Qty    *float64 `json:"qty,omitempty"`
	Source string   `json:"source,omitempty"`
}

// Sample returns the average as a heart rate sample, falling back to qty
// when no average was sent.
func (dp HAEHeartRateDataPoint) Sample() RawSample {
	v := dp.Avg
	if v == 0 && dp.Qty != nil {
		v = *dp.Qty
	}
	return RawSample{Kind: MetricHeartRate, Start: dp.Date.Time, End: dp.Date.Time, Value: v, Source: dp.Source}
}

// HAESleepStage is an individual sleep stage segment (Summarize Data: OFF).
type HAESleepStage struct {
	StartDate HAETime `json:"startDate"`
	EndDate   HAETime `json:"endDate"`
	Qty       float64 `json:"qty"`
	Value     string  `json:"value"`
	Source    string  `json:"source,omitempty"`
}

// Sample returns the segment with its stage code as the value. Unrecognized
// stage names get code 0 and classify as UNKNOWN.
func (st HAESleepStage) Sample() RawSample {
	code, _ := StageCodeFromName(st.Value)
	return RawSample{
		Kind:   MetricSleepSegment,
		Start:  st.StartDate.Time,
		End:    st.EndDate.Time,
		Value:  float64(code),
		Source: st.Source,
	}
}
