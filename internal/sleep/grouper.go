// Package sleep classifies raw sleep segments and groups them into nights.
package sleep

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/claude/fitbridge/internal/metrics"
	"github.com/claude/fitbridge/internal/models"
)

// Grouper turns sleep segment samples into nightly summaries. A night is
// keyed by the local calendar date of each segment's start, so a segment
// that crosses midnight stays with the earlier date.
type Grouper struct {
	loc *time.Location
	log *slog.Logger
}

// NewGrouper creates a Grouper for the given location.
func NewGrouper(loc *time.Location, log *slog.Logger) *Grouper {
	if loc == nil {
		loc = time.Local
	}
	return &Grouper{loc: loc, log: log}
}

// Segments classifies samples by stage code. Malformed samples are logged
// and skipped.
func (g *Grouper) Segments(samples []models.RawSample) []models.SleepSegment {
	segs := make([]models.SleepSegment, 0, len(samples))
	for _, s := range samples {
		if s.Kind != models.MetricSleepSegment {
			g.skip(s, fmt.Errorf("%w: expected %s, got %s", models.ErrMalformedSample, models.MetricSleepSegment, s.Kind))
			continue
		}
		if err := s.Validate(); err != nil {
			g.skip(s, err)
			continue
		}
		segs = append(segs, models.SleepSegment{
			Start:           s.Start,
			End:             s.End,
			DurationMinutes: int64(s.End.Sub(s.Start) / time.Minute),
			Stage:           models.SleepStageFromCode(s.StageCode()),
		})
	}
	return segs
}

func (g *Grouper) skip(s models.RawSample, err error) {
	g.log.Warn("skipping sleep segment", "start", s.Start, "error", err)
	metrics.RecordMalformed(models.MetricSleepSegment.String())
}

// Group builds one summary per start date, sorted descending by date.
func (g *Grouper) Group(samples []models.RawSample) []models.NightlySleepSummary {
	byDate := make(map[string][]models.SleepSegment)
	for _, seg := range g.Segments(samples) {
		key := seg.Start.In(g.loc).Format(models.DateLayout)
		byDate[key] = append(byDate[key], seg)
	}

	nights := make([]models.NightlySleepSummary, 0, len(byDate))
	for date, segs := range byDate {
		nights = append(nights, Summarize(date, segs))
	}
	sort.Slice(nights, func(i, j int) bool { return nights[i].Date > nights[j].Date })
	return nights
}

// Summarize computes the summary for one night. segs must be non-empty; it
// is sorted in place by start time.
//
// AWAKE, OUT_OF_BED and UNKNOWN never count toward sleep. Generic SLEEP is
// counted as light sleep, so light + deep + rem always equals the total.
func Summarize(date string, segs []models.SleepSegment) models.NightlySleepSummary {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start.Before(segs[j].Start) })

	night := models.NightlySleepSummary{
		Date:     date,
		Bedtime:  segs[0].Start,
		WakeTime: segs[0].End,
		Segments: segs,
	}
	for _, seg := range segs {
		if seg.End.After(night.WakeTime) {
			night.WakeTime = seg.End
		}
		switch seg.Stage {
		case models.SleepStageLight, models.SleepStageSleep:
			night.LightMinutes += seg.DurationMinutes
		case models.SleepStageDeep:
			night.DeepMinutes += seg.DurationMinutes
		case models.SleepStageREM:
			night.REMMinutes += seg.DurationMinutes
		}
	}
	night.TotalSleepMinutes = night.LightMinutes + night.DeepMinutes + night.REMMinutes
	return night
}

// SpanMinutes sums the full duration of every segment, awake and out of bed
// included. Durations are added before truncating to whole minutes.
func SpanMinutes(segs []models.SleepSegment) int64 {
	var total time.Duration
	for _, seg := range segs {
		total += seg.End.Sub(seg.Start)
	}
	return int64(total / time.Minute)
}
