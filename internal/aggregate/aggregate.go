// Package aggregate buckets raw samples into daily and hourly totals and
// reduces point metrics over a query window.
package aggregate

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/claude/fitbridge/internal/metrics"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/timerange"
)

// Aggregator buckets samples on local calendar boundaries.
type Aggregator struct {
	loc *time.Location
	log *slog.Logger
}

// New creates an Aggregator for the given location.
func New(loc *time.Location, log *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{loc: loc, log: log}
}

// ByKind splits a mixed reader result by metric kind, keeping order.
func ByKind(samples []models.RawSample) map[models.MetricKind][]models.RawSample {
	out := make(map[models.MetricKind][]models.RawSample)
	for _, s := range samples {
		out[s.Kind] = append(out[s.Kind], s)
	}
	return out
}

// usable drops malformed samples and samples starting outside r.
func (a *Aggregator) usable(samples []models.RawSample, r models.TimeRange) []models.RawSample {
	out := make([]models.RawSample, 0, len(samples))
	for _, s := range samples {
		if err := s.Validate(); err != nil {
			a.log.Warn("skipping sample", "kind", s.Kind.String(), "error", err)
			metrics.RecordMalformed(s.Kind.String())
			continue
		}
		if !r.Contains(s.Start) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Daily sums samples per local day. The result holds exactly one entry per
// calendar day in r, ascending, with zero totals for days without samples.
// Every entry starts with an empty hourly sequence.
func (a *Aggregator) Daily(samples []models.RawSample, r models.TimeRange) []models.DailyMetric {
	totals := make(map[string]float64)
	for _, s := range a.usable(samples, r) {
		totals[s.Start.In(a.loc).Format(models.DateLayout)] += s.Value
	}

	days := timerange.Days(r, a.loc)
	out := make([]models.DailyMetric, 0, len(days))
	for _, day := range days {
		out = append(out, models.DailyMetric{
			Date:   day,
			Total:  totals[day],
			Hourly: []models.HourlyMetric{},
		})
	}
	return out
}

// Hourly sums samples per local hour, keyed by date. Hours with a zero
// total are omitted and each day's hours are sorted ascending.
func (a *Aggregator) Hourly(samples []models.RawSample, r models.TimeRange) map[string][]models.HourlyMetric {
	type key struct {
		date string
		hour int
	}
	totals := make(map[key]float64)
	for _, s := range a.usable(samples, r) {
		local := s.Start.In(a.loc)
		totals[key{local.Format(models.DateLayout), local.Hour()}] += s.Value
	}

	out := make(map[string][]models.HourlyMetric)
	for k, total := range totals {
		if total == 0 {
			continue
		}
		out[k.date] = append(out[k.date], models.HourlyMetric{Hour: k.hour, Total: total})
	}
	for date := range out {
		sort.Slice(out[date], func(i, j int) bool { return out[date][i].Hour < out[date][j].Hour })
	}
	return out
}

// Merge attaches hourly detail to daily totals by date. A day without hourly
// detail keeps an empty sequence; hourly detail for a date missing from
// daily gets a zero-total entry. The daily totals are never recomputed from
// the hourly values. Result is ascending by date.
func Merge(daily []models.DailyMetric, hourly map[string][]models.HourlyMetric) []models.DailyMetric {
	out := make([]models.DailyMetric, 0, len(daily))
	index := make(map[string]int, len(daily))
	for _, d := range daily {
		if d.Hourly == nil {
			d.Hourly = []models.HourlyMetric{}
		}
		index[d.Date] = len(out)
		out = append(out, d)
	}

	for date, hours := range hourly {
		if i, ok := index[date]; ok {
			out[i].Hourly = hours
			continue
		}
		index[date] = len(out)
		out = append(out, models.DailyMetric{Date: date, Hourly: hours})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Sum adds the values of all usable samples in r.
func (a *Aggregator) Sum(samples []models.RawSample, r models.TimeRange) float64 {
	var total float64
	for _, s := range a.usable(samples, r) {
		total += s.Value
	}
	return total
}

// Mean is the arithmetic mean of all usable samples in r, or 0 when there are none.
func (a *Aggregator) Mean(samples []models.RawSample, r models.TimeRange) float64 {
	usable := a.usable(samples, r)
	if len(usable) == 0 {
		return 0
	}
	var total float64
	for _, s := range usable {
		total += s.Value
	}
	return total / float64(len(usable))
}

// Latest returns the usable sample in r with the greatest end time.
func (a *Aggregator) Latest(samples []models.RawSample, r models.TimeRange) (models.RawSample, bool) {
	var latest models.RawSample
	found := false
	for _, s := range a.usable(samples, r) {
		if !found || s.End.After(latest.End) {
			latest = s
			found = true
		}
	}
	return latest, found
}

// Snapshot reduces one window's samples into a FitnessSnapshot. Additive
// kinds are summed, heart rate is averaged over the whole window, weight and
// height take the latest reading. sleepMinutes is supplied by the caller.
func (a *Aggregator) Snapshot(byKind map[models.MetricKind][]models.RawSample, r models.TimeRange, sleepMinutes int64) models.FitnessSnapshot {
	snap := models.FitnessSnapshot{
		Steps:                int64(math.Round(a.Sum(byKind[models.MetricSteps], r))),
		Distance:             a.Sum(byKind[models.MetricDistance], r),
		Calories:             a.Sum(byKind[models.MetricCalories], r),
		HeartRate:            a.Mean(byKind[models.MetricHeartRate], r),
		SleepDurationMinutes: sleepMinutes,
	}
	if w, ok := a.Latest(byKind[models.MetricWeight], r); ok {
		snap.Weight = w.Value
	}
	if h, ok := a.Latest(byKind[models.MetricHeight], r); ok {
		snap.Height = h.Value
	}
	return snap
}
