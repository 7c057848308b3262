package models

import "time"

// AppleEpochOffset is the number of seconds between Unix epoch (1970-01-01)
// and Apple Core Data epoch (2001-01-01).
const AppleEpochOffset int64 = 978307200

// AppleTimestampToTime converts an Apple Core Data timestamp (seconds since 2001-01-01)
// to a Go time.Time in UTC.
func AppleTimestampToTime(appleTS float64) time.Time {
	sec := int64(appleTS)
	nsec := int64((appleTS - float64(sec)) * 1e9)
	return time.Unix(sec+AppleEpochOffset, nsec).UTC()
}

// HAEFileMetric is the root JSON structure of a health metric .hae file.
type HAEFileMetric struct {
	Metric string             `json:"metric"`
	Date   float64            `json:"date"`
	Data   []HAEFileDataPoint `json:"data"`
}

// HAEFileDataPoint is a single data point within a health metric .hae file.
// Standard metrics use Qty; heart_rate uses Min/Avg/Max. Sleep points carry
// exactly one of Awake/Core/Deep/REM, holding the stage duration in hours.
type HAEFileDataPoint struct {
	Metric  string          `json:"metric"`
	Start   float64         `json:"start"`
	End     float64         `json:"end"`
	Unit    string          `json:"unit"`
	Qty     *float64        `json:"qty,omitempty"`
	Min     *float64        `json:"min,omitempty"`
	Avg     *float64        `json:"avg,omitempty"`
	Max     *float64        `json:"max,omitempty"`
	Sources []HAEFileSource `json:"sources,omitempty"`

	Awake *float64 `json:"awake,omitempty"`
	Core  *float64 `json:"core,omitempty"`
	Deep  *float64 `json:"deep,omitempty"`
	REM   *float64 `json:"rem,omitempty"`
}

// HAEFileSource identifies the data source device.
type HAEFileSource struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// SleepStageCode returns the stage code for a sleep data point. Core sleep
// is light sleep. ok is false when no stage field is set.
func (dp *HAEFileDataPoint) SleepStageCode() (code int, ok bool) {
	positive := func(v *float64) bool { return v != nil && *v > 0 }
	switch {
	case positive(dp.Awake):
		return StageCodeAwake, true
	case positive(dp.Core):
		return StageCodeLight, true
	case positive(dp.Deep):
		return StageCodeDeep, true
	case positive(dp.REM):
		return StageCodeREM, true
	}
	return 0, false
}

// Value returns the reading of a non-sleep point: Avg for min/avg/max
// points, otherwise Qty.
func (dp *HAEFileDataPoint) Value() (float64, bool) {
	if dp.Avg != nil {
		return *dp.Avg, true
	}
	if dp.Qty != nil {
		return *dp.Qty, true
	}
	return 0, false
}

// SourceName returns the first source's name, or empty string.
func (dp *HAEFileDataPoint) SourceName() string {
	if len(dp.Sources) > 0 {
		return dp.Sources[0].Name
	}
	return ""
}
