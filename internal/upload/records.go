// Package upload converts aggregated results into backend health-data
// records and submits them.
package upload

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

// DataType is the backend's classification of a health-data record.
type DataType string

const (
	DataTypeSteps           DataType = "STEPS"
	DataTypeHeartbeat       DataType = "HEARTBEAT"
	DataTypeBloodPressure   DataType = "BLOOD_PRESSURE"
	DataTypeAirQuality      DataType = "AIR_QUALITY"
	DataTypeRoomTemperature DataType = "ROOM_TEMPERATURE"
	DataTypeCO2             DataType = "C02"
)

// measuredAtLayout is ISO-8601 local time without a zone suffix.
const measuredAtLayout = "2006-01-02T15:04:05"

const (
	unitSteps = "steps"
	unitBPM   = "bpm"
)

// Record is one health-data row accepted by the backend.
type Record struct {
	DeviceID     string   `json:"deviceId"`
	MeasuredAt   string   `json:"measuredAt"`
	DataType     DataType `json:"dataType"`
	ValueNumeric float64  `json:"valueNumeric"`
	Unit         string   `json:"unit"`
}

// stepCount rounds a step total to the whole count the backend stores.
func stepCount(v float64) float64 {
	return math.Round(v)
}

// BuildRecords flattens days into one STEPS record per day and one per
// hour with whole step counts, then appends a HEARTBEAT record at now when snapshot carries a
// positive heart rate. snapshot may be nil.
func BuildRecords(deviceID string, days []models.DailyMetric, snapshot *models.FitnessSnapshot, now time.Time, loc *time.Location) []Record {
	var records []Record
	for _, d := range days {
		records = append(records, Record{
			DeviceID:     deviceID,
			MeasuredAt:   d.Date + "T00:00:00",
			DataType:     DataTypeSteps,
			ValueNumeric: stepCount(d.Total),
			Unit:         unitSteps,
		})
		for _, h := range d.Hourly {
			records = append(records, Record{
				DeviceID:     deviceID,
				MeasuredAt:   fmt.Sprintf("%sT%02d:00:00", d.Date, h.Hour),
				DataType:     DataTypeSteps,
				ValueNumeric: stepCount(h.Total),
				Unit:         unitSteps,
			})
		}
	}

	if snapshot != nil && snapshot.HeartRate > 0 {
		if loc == nil {
			loc = time.Local
		}
		records = append(records, Record{
			DeviceID:     deviceID,
			MeasuredAt:   now.In(loc).Truncate(time.Second).Format(measuredAtLayout),
			DataType:     DataTypeHeartbeat,
			ValueNumeric: float64(int64(snapshot.HeartRate)),
			Unit:         unitBPM,
		})
	}
	return records
}
