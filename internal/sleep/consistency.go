package sleep

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

// Consistency holds averages and timing regularity over a set of nights.
type Consistency struct {
	Nights                   int     `json:"nights"`
	AvgTotalSleepMinutes     float64 `json:"avg_total_sleep_minutes"`
	AvgLightMinutes          float64 `json:"avg_light_minutes"`
	AvgDeepMinutes           float64 `json:"avg_deep_minutes"`
	AvgREMMinutes            float64 `json:"avg_rem_minutes"`
	AvgBedtime               string  `json:"avg_bedtime"`
	AvgWaketime              string  `json:"avg_waketime"`
	BedtimeConsistencyStdHr  float64 `json:"bedtime_consistency_stddev_hr"`
	WaketimeConsistencyStdHr float64 `json:"waketime_consistency_stddev_hr"`
}

// ComputeConsistency averages nights, using circular means for bedtime and
// waketime in loc.
func ComputeConsistency(nights []models.NightlySleepSummary, loc *time.Location) Consistency {
	c := Consistency{Nights: len(nights)}
	if len(nights) == 0 {
		return c
	}
	if loc == nil {
		loc = time.Local
	}

	var total, light, deep, rem float64
	bedtimeHours := make([]float64, 0, len(nights))
	waketimeHours := make([]float64, 0, len(nights))
	for _, n := range nights {
		total += float64(n.TotalSleepMinutes)
		light += float64(n.LightMinutes)
		deep += float64(n.DeepMinutes)
		rem += float64(n.REMMinutes)
		bedtimeHours = append(bedtimeHours, timeToHourOfDay(n.Bedtime.In(loc)))
		waketimeHours = append(waketimeHours, timeToHourOfDay(n.WakeTime.In(loc)))
	}

	count := float64(len(nights))
	c.AvgTotalSleepMinutes = round1(total / count)
	c.AvgLightMinutes = round1(light / count)
	c.AvgDeepMinutes = round1(deep / count)
	c.AvgREMMinutes = round1(rem / count)

	avgBed, stdBed := circularMeanStd(bedtimeHours)
	avgWake, stdWake := circularMeanStd(waketimeHours)
	c.AvgBedtime = hoursToHHMM(avgBed)
	c.AvgWaketime = hoursToHHMM(avgWake)
	c.BedtimeConsistencyStdHr = math.Round(stdBed*100) / 100
	c.WaketimeConsistencyStdHr = math.Round(stdWake*100) / 100
	return c
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// timeToHourOfDay extracts fractional hour of day from a time.Time.
func timeToHourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
}

// circularMeanStd computes the circular mean and standard deviation for times
// expressed as hours (0–24). 23:00 and 01:00 average to 00:00, not 12:00.
func circularMeanStd(hours []float64) (mean, std float64) {
	if len(hours) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, h := range hours {
		rad := h / 24.0 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(hours))
	sinAvg := sinSum / n
	cosAvg := cosSum / n

	meanRad := math.Atan2(sinAvg, cosAvg)
	if meanRad < 0 {
		meanRad += 2 * math.Pi
	}
	mean = meanRad / (2 * math.Pi) * 24.0

	r := math.Sqrt(sinAvg*sinAvg + cosAvg*cosAvg)
	if r > 1 {
		r = 1
	}
	if r > 0 {
		std = math.Sqrt(-2*math.Log(r)) / (2 * math.Pi) * 24.0
	}

	return mean, std
}

// hoursToHHMM formats fractional hours (0–24) as "HH:MM".
func hoursToHHMM(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	hours := int(h)
	minutes := int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	if hours >= 24 {
		hours -= 24
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
