// Package format shapes aggregated results into the structured list and
// document contracts.
package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

const clockLayout = "15:04:05"

// StepList returns the structured list contract: days sorted descending by
// date, each with a non-nil hourly sequence. The input is not modified.
func StepList(days []models.DailyMetric) []models.DailyMetric {
	out := make([]models.DailyMetric, len(days))
	copy(out, days)
	for i := range out {
		if out[i].Hourly == nil {
			out[i].Hourly = []models.HourlyMetric{}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// TodaySteps is the todaySteps object of the document contract.
type TodaySteps struct {
	Date  string `json:"date"`
	Steps int64  `json:"steps"`
}

// Document is the document contract.
type Document struct {
	TodaySteps TodaySteps      `json:"todaySteps"`
	SleepData  []NightDocument `json:"sleepData"`
}

// NightDocument is one night in the document contract.
type NightDocument struct {
	Date              string            `json:"date"`
	Bedtime           string            `json:"bedtime"`
	WakeTime          string            `json:"wakeTime"`
	TotalSleepMinutes int64             `json:"totalSleepMinutes"`
	TotalSleepHours   string            `json:"totalSleepHours"`
	LightSleepMinutes int64             `json:"lightSleepMinutes"`
	DeepSleepMinutes  int64             `json:"deepSleepMinutes"`
	REMSleepMinutes   int64             `json:"remSleepMinutes"`
	Segments          []SegmentDocument `json:"segments"`
}

// SegmentDocument is one sleep segment in the document contract.
type SegmentDocument struct {
	StartTime       string            `json:"startTime"`
	EndTime         string            `json:"endTime"`
	StartTimestamp  int64             `json:"startTimestamp"`
	EndTimestamp    int64             `json:"endTimestamp"`
	DurationMinutes int64             `json:"durationMinutes"`
	SleepStage      models.SleepStage `json:"sleepStage"`
}

// Formatter renders times of day in a fixed location.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter for loc.
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{loc: loc}
}

// Document builds the document contract. Nights are emitted descending by
// date; a nil nights slice yields an empty sleepData array.
func (f Formatter) Document(today TodaySteps, nights []models.NightlySleepSummary) Document {
	doc := Document{
		TodaySteps: today,
		SleepData:  make([]NightDocument, 0, len(nights)),
	}
	for _, n := range nights {
		doc.SleepData = append(doc.SleepData, f.night(n))
	}
	sort.SliceStable(doc.SleepData, func(i, j int) bool { return doc.SleepData[i].Date > doc.SleepData[j].Date })
	return doc
}

func (f Formatter) night(n models.NightlySleepSummary) NightDocument {
	nd := NightDocument{
		Date:              n.Date,
		Bedtime:           n.Bedtime.In(f.loc).Format(clockLayout),
		WakeTime:          n.WakeTime.In(f.loc).Format(clockLayout),
		TotalSleepMinutes: n.TotalSleepMinutes,
		TotalSleepHours:   Hours(n.TotalSleepMinutes),
		LightSleepMinutes: n.LightMinutes,
		DeepSleepMinutes:  n.DeepMinutes,
		REMSleepMinutes:   n.REMMinutes,
		Segments:          make([]SegmentDocument, 0, len(n.Segments)),
	}
	for _, s := range n.Segments {
		nd.Segments = append(nd.Segments, SegmentDocument{
			StartTime:       s.Start.In(f.loc).Format(clockLayout),
			EndTime:         s.End.In(f.loc).Format(clockLayout),
			StartTimestamp:  s.Start.UnixMilli(),
			EndTimestamp:    s.End.UnixMilli(),
			DurationMinutes: s.DurationMinutes,
			SleepStage:      s.Stage,
		})
	}
	return nd
}

// Hours formats minutes as hours with one decimal place, rounding half up
// (15 minutes is "0.3", 390 minutes is "6.5").
func Hours(minutes int64) string {
	if minutes < 0 {
		return "-" + Hours(-minutes)
	}
	tenths := (minutes + 3) / 6
	return fmt.Sprintf("%d.%d", tenths/10, tenths%10)
}

// JSON serializes the document with a two-space indent.
func (d Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return data, nil
}
